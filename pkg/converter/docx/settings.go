package docx

import "github.com/beevik/etree"

// settingsAfterUpdateFields are the CT_Settings children that must follow
// w:updateFields. Inserting before the first of them keeps schema order.
var settingsAfterUpdateFields = map[string]bool{
	"hdrShapeDefaults": true, "footnotePr": true, "endnotePr": true, "compat": true,
	"docVars": true, "rsids": true, "mathPr": true, "attachedSchema": true,
	"themeFontLang": true, "clrSchemeMapping": true, "doNotIncludeSubdocsInStats": true,
	"doNotAutoCompressPictures": true, "forceUpgrade": true, "captions": true,
	"readModeInkLockDown": true, "smartTagType": true, "schemaLibrary": true,
	"shapeDefaults": true, "doNotEmbedSmartTags": true, "decimalSymbol": true,
	"listSeparator": true,
}

const relTypeSettings = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings"

const ctSettings = "application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"

// SetUpdateFields asks Word to refresh fields such as the table of contents
// and page references when the document is next opened. The settings part
// is created when the template has none.
func (d *Document) SetUpdateFields() error {
	if !d.Has(PartSettings) {
		if err := d.createSettings(); err != nil {
			return err
		}
	}
	x, err := d.Part(PartSettings)
	if err != nil {
		return err
	}
	root := x.Root()
	if root == nil {
		return ErrInvalidPackage
	}
	if uf := root.SelectElement("w:updateFields"); uf != nil {
		uf.CreateAttr("w:val", "true")
		return nil
	}
	uf := etree.NewElement("w:updateFields")
	uf.CreateAttr("w:val", "true")
	for _, c := range root.ChildElements() {
		if settingsAfterUpdateFields[c.Tag] {
			root.InsertChildAt(c.Index(), uf)
			return nil
		}
	}
	root.AddChild(uf)
	return nil
}

// UpdateFields reports whether the update-fields flag is set.
func (d *Document) UpdateFields() bool {
	if !d.Has(PartSettings) {
		return false
	}
	x, err := d.Part(PartSettings)
	if err != nil || x.Root() == nil {
		return false
	}
	uf := x.Root().SelectElement("w:updateFields")
	if uf == nil {
		return false
	}
	v := uf.SelectAttrValue("w:val", "true")
	return v == "true" || v == "1" || v == "on"
}

func (d *Document) createSettings() error {
	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := x.CreateElement("w:settings")
	root.CreateAttr("xmlns:w", NSWordML)
	d.SetPart(PartSettings, x)
	if err := d.addOverride("/"+PartSettings, ctSettings); err != nil {
		return err
	}
	_, err := d.addRelationship(PartDocumentRels, relTypeSettings, "settings.xml", false)
	return err
}
