// Package gdtf parses GDTF fixture packages (ZIP archives carrying an
// XML device description) into profiles, and loads whole profile
// libraries from a directory of .gdtf files.
package gdtf

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

// noFeature is the GDTF sentinel for channels that drive nothing.
const noFeature = "NoFeature"

// maxEntrySize caps a single archive entry read.
const maxEntrySize = 64 << 20

type descriptionXML struct {
	FixtureType fixtureTypeXML `xml:"FixtureType"`
}

type fixtureTypeXML struct {
	Name  string       `xml:"Name,attr"`
	Modes []dmxModeXML `xml:"DMXModes>DMXMode"`
}

type dmxModeXML struct {
	Name     string          `xml:"Name,attr"`
	Channels []dmxChannelXML `xml:"DMXChannels>DMXChannel"`
}

type dmxChannelXML struct {
	Offset          string              `xml:"Offset,attr"`
	LogicalChannels []logicalChannelXML `xml:"LogicalChannel"`
}

type logicalChannelXML struct {
	Attribute string `xml:"Attribute,attr"`
}

// attributeDef is one resolved //Attribute definition from the
// description document.
type attributeDef struct {
	pretty          string
	activationGroup string
}

// Parse reads a GDTF package from data. stem is the archive's file
// name without extension; it names the profile when the description
// carries no FixtureType Name. The returned profile is tagged
// SourceExternal; callers embedding profiles from show files retag it.
func Parse(data []byte, stem string) (*fixture.Profile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening gdtf archive: %w", err)
	}

	descData, err := readDescription(zr)
	if err != nil {
		return nil, err
	}
	return parseDescription(descData, stem)
}

// ParseFile reads a .gdtf file from disk.
func ParseFile(path string) (*fixture.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gdtf file: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(data, stem)
}

// readDescription locates the device description entry. An entry named
// exactly description.xml wins; otherwise any entry whose name ends in
// description.xml (nested folders inside the archive occur in the wild).
func readDescription(zr *zip.Reader) ([]byte, error) {
	var fallback *zip.File
	for _, f := range zr.File {
		if f.Name == "description.xml" {
			return readZipEntry(f)
		}
		if fallback == nil && strings.HasSuffix(f.Name, "description.xml") {
			fallback = f
		}
	}
	if fallback != nil {
		return readZipEntry(fallback)
	}
	return nil, fmt.Errorf("no description.xml entry in gdtf archive")
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("reading archive entry %s: %w", f.Name, err)
	}
	return data, nil
}

func parseDescription(data []byte, stem string) (*fixture.Profile, error) {
	var desc descriptionXML
	if err := xml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing gdtf description: %w", err)
	}

	attrs, err := collectAttributeDefs(data)
	if err != nil {
		return nil, err
	}

	name := desc.FixtureType.Name
	if name == "" {
		name = stem
	}
	profile := &fixture.Profile{Name: name, Source: fixture.SourceExternal}

	for _, modeXML := range desc.FixtureType.Modes {
		if modeXML.Name == "" {
			continue
		}
		mode := &fixture.Mode{
			Name:             modeXML.Name,
			Channels:         make(map[string]int),
			ActivationGroups: make(map[string]string),
		}
		for _, ch := range modeXML.Channels {
			offset, ok := firstOffset(ch.Offset)
			if !ok {
				continue
			}
			if len(ch.LogicalChannels) == 0 {
				continue
			}
			ref := ch.LogicalChannels[0].Attribute
			if ref == "" {
				continue
			}
			resolved, group := resolveAttribute(ref, attrs)
			if resolved == noFeature {
				continue
			}
			mode.Channels[resolved] = offset
			if group != "" {
				mode.ActivationGroups[resolved] = group
			}
		}
		mode.TotalChannels = len(mode.Channels)
		// Modes with zero usable channels stay visible; they simply
		// never satisfy a match that needs attributes.
		profile.AddMode(mode)
	}
	return profile, nil
}

// collectAttributeDefs indexes every Attribute element in the document
// by its Name, wherever it appears. Channel attribute references are
// resolved against this flat index.
func collectAttributeDefs(data []byte) (map[string]attributeDef, error) {
	defs := make(map[string]attributeDef)
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scanning gdtf attributes: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Attribute" {
			continue
		}
		var name string
		var def attributeDef
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "Name":
				name = a.Value
			case "Pretty":
				def.pretty = a.Value
			case "ActivationGroup":
				def.activationGroup = a.Value
			}
		}
		if name != "" {
			defs[name] = def
		}
	}
	return defs, nil
}

// resolveAttribute maps a channel's attribute reference to its
// human-readable name (Pretty over Name) and activation group. An
// unresolvable reference falls back to the reference string itself.
func resolveAttribute(ref string, defs map[string]attributeDef) (string, string) {
	def, ok := defs[ref]
	if !ok {
		return ref, ""
	}
	if def.pretty != "" {
		return def.pretty, def.activationGroup
	}
	return ref, def.activationGroup
}

// firstOffset parses a DMXChannel Offset attribute. Multi-byte
// channels list offsets comma-separated; only the first byte's offset
// addresses the channel.
func firstOffset(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "None" {
		return 0, false
	}
	first := raw
	if i := strings.IndexByte(raw, ','); i >= 0 {
		first = raw[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
