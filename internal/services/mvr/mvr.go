// Package mvr parses MVR show files (ZIP archives carrying a scene
// description XML and optionally embedded GDTF packages) into raw
// fixture records.
package mvr

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patchlink/patchlink-go/internal/fixture"
	"github.com/patchlink/patchlink-go/internal/services/gdtf"
)

// maxEntrySize caps a single archive entry read.
const maxEntrySize = 256 << 20

// Result is the outcome of one MVR parse.
type Result struct {
	Fixtures         []fixture.RawFixture        `json:"fixtures"`
	EmbeddedProfiles map[string]*fixture.Profile `json:"embeddedProfiles"`
}

// valueElem reads elements of the form <X>text</X> or <X value="..."/>.
// Both occur in the wild; text wins when present.
type valueElem struct {
	Text  string `xml:",chardata"`
	Value string `xml:"value,attr"`
}

func (v *valueElem) get() string {
	if v == nil {
		return ""
	}
	if s := strings.TrimSpace(v.Text); s != "" {
		return s
	}
	return strings.TrimSpace(v.Value)
}

type fixtureXML struct {
	Name      string        `xml:"name,attr"`
	UUID      string        `xml:"uuid,attr"`
	GDTFSpec  *valueElem    `xml:"GDTFSpec"`
	GDTFMode  *valueElem    `xml:"GDTFMode"`
	Addresses *addressesXML `xml:"Addresses"`
	FixtureID *valueElem    `xml:"FixtureID"`
}

type addressesXML struct {
	Address *valueElem `xml:"Address"`
}

// Parse reads an MVR archive from data.
func Parse(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening mvr archive: %w", err)
	}

	sceneData, err := readSceneXML(zr)
	if err != nil {
		return nil, err
	}

	fixtures, err := extractFixtures(sceneData)
	if err != nil {
		return nil, err
	}

	return &Result{
		Fixtures:         fixtures,
		EmbeddedProfiles: extractEmbeddedProfiles(zr),
	}, nil
}

// ParseFile reads an .mvr file from disk.
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mvr file: %w", err)
	}
	return Parse(data)
}

// readSceneXML picks the scene description entry: an entry naming
// GeneralSceneDescription wins, then one naming Scene, else the first
// .xml entry.
func readSceneXML(zr *zip.Reader) ([]byte, error) {
	var xmlEntries []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".xml") {
			xmlEntries = append(xmlEntries, f)
		}
	}
	if len(xmlEntries) == 0 {
		return nil, fmt.Errorf("no XML entry in mvr archive")
	}

	for _, pattern := range []string{"GeneralSceneDescription", "Scene"} {
		for _, f := range xmlEntries {
			if strings.Contains(f.Name, pattern) {
				return readZipEntry(f)
			}
		}
	}
	return readZipEntry(xmlEntries[0])
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

// extractFixtures walks every Fixture element nested (at any depth)
// under a Layer's ChildList. Field-level defects never drop a fixture;
// each missing field gets its documented default.
func extractFixtures(sceneData []byte) ([]fixture.RawFixture, error) {
	var fixtures []fixture.RawFixture
	counter := 1

	dec := xml.NewDecoder(bytes.NewReader(sceneData))
	layerDepth, childListDepth := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing mvr scene: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Layer":
				layerDepth++
			case "ChildList":
				childListDepth++
			case "Fixture":
				if layerDepth == 0 || childListDepth == 0 {
					continue
				}
				var fx fixtureXML
				if err := dec.DecodeElement(&fx, &t); err != nil {
					log.Printf("Warning: could not extract fixture data: %v", err)
					continue
				}
				fixtures = append(fixtures, buildRawFixture(fx, counter))
				counter++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "Layer":
				layerDepth--
			case "ChildList":
				childListDepth--
			}
		}
	}
	return fixtures, nil
}

func buildRawFixture(fx fixtureXML, counter int) fixture.RawFixture {
	name := fx.Name
	if name == "" {
		name = fmt.Sprintf("Fixture_%d", counter)
	}

	declaredType := fx.GDTFSpec.get()
	if declaredType == "" {
		declaredType = "Unknown"
	}

	baseAddress := 1
	if fx.Addresses != nil {
		if raw := fx.Addresses.Address.get(); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				baseAddress = n
			}
		}
	}

	fixtureID := counter
	if raw := fx.FixtureID.get(); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			fixtureID = n
		}
	}

	return fixture.RawFixture{
		Name:         name,
		UUID:         fx.UUID,
		DeclaredType: declaredType,
		DeclaredMode: fx.GDTFMode.get(),
		BaseAddress:  baseAddress,
		FixtureID:    fixtureID,
	}
}

// extractEmbeddedProfiles parses every .gdtf entry, keyed by filename
// stem. A GDTF that fails to parse is logged and omitted.
func extractEmbeddedProfiles(zr *zip.Reader) map[string]*fixture.Profile {
	profiles := make(map[string]*fixture.Profile)
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".gdtf") {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		data, err := readZipEntry(f)
		if err != nil {
			log.Printf("Error extracting GDTF %s from mvr: %v", f.Name, err)
			continue
		}
		profile, err := gdtf.Parse(data, stem)
		if err != nil {
			log.Printf("Error parsing GDTF %s from mvr: %v", f.Name, err)
			continue
		}
		profile.Source = fixture.SourceMVR
		profiles[stem] = profile
	}
	return profiles
}
