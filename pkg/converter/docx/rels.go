package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

// RelsPartFor returns the relationships part name belonging to part.
func RelsPartFor(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

// Relationships lists the relationships declared for part.
func (d *Document) Relationships(part string) ([]Relationship, error) {
	relsName := RelsPartFor(part)
	if !d.Has(relsName) {
		return nil, nil
	}
	x, err := d.Part(relsName)
	if err != nil {
		return nil, err
	}
	var out []Relationship
	if x.Root() == nil {
		return nil, nil
	}
	for _, r := range x.Root().SelectElements("Relationship") {
		out = append(out, Relationship{
			ID:       r.SelectAttrValue("Id", ""),
			Type:     r.SelectAttrValue("Type", ""),
			Target:   r.SelectAttrValue("Target", ""),
			External: strings.EqualFold(r.SelectAttrValue("TargetMode", ""), "External"),
		})
	}
	return out, nil
}

func (d *Document) relsRoot(relsName string) (*etree.Element, error) {
	if !d.Has(relsName) {
		x := etree.NewDocument()
		x.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		x.CreateElement("Relationships").CreateAttr("xmlns", NSPackageRels)
		d.SetPart(relsName, x)
	}
	x, err := d.Part(relsName)
	if err != nil {
		return nil, err
	}
	if x.Root() == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidPackage, relsName)
	}
	return x.Root(), nil
}

// addRelationship appends a relationship with a fresh rIdN identifier.
func (d *Document) addRelationship(relsName, relType, target string, external bool) (string, error) {
	root, err := d.relsRoot(relsName)
	if err != nil {
		return "", err
	}
	maxID := 0
	for _, r := range root.SelectElements("Relationship") {
		id := r.SelectAttrValue("Id", "")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && strings.HasPrefix(id, "rId") && n > maxID {
			maxID = n
		}
	}
	id := "rId" + strconv.Itoa(maxID+1)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	if external {
		rel.CreateAttr("TargetMode", "External")
	}
	return id, nil
}

func (d *Document) contentTypesRoot() (*etree.Element, error) {
	x, err := d.Part(PartContentTypes)
	if err != nil {
		return nil, err
	}
	if x.Root() == nil {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidPackage, PartContentTypes)
	}
	return x.Root(), nil
}

// addDefault registers a content type for a file extension if none exists.
func (d *Document) addDefault(ext, contentType string) error {
	root, err := d.contentTypesRoot()
	if err != nil {
		return err
	}
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", contentType)
	// Defaults precede Overrides by convention.
	if first := root.SelectElement("Override"); first != nil {
		root.InsertChildAt(first.Index(), def)
	} else {
		root.AddChild(def)
	}
	return nil
}

// addOverride registers a content type for one part if none exists.
func (d *Document) addOverride(partName, contentType string) error {
	root, err := d.contentTypesRoot()
	if err != nil {
		return err
	}
	for _, o := range root.SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == partName {
			return nil
		}
	}
	o := root.CreateElement("Override")
	o.CreateAttr("PartName", partName)
	o.CreateAttr("ContentType", contentType)
	return nil
}
