// Package ma3patch parses grandMA3 patch XML exports into raw fixture
// records. It is the alternate ingestion path for rigs that only exist
// as a console export.
package ma3patch

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

type gma3XML struct {
	XMLName  xml.Name        `xml:"GMA3"`
	Fixtures []ma3FixtureXML `xml:"Fixture"`
}

type ma3FixtureXML struct {
	Name  string `xml:"Name,attr"`
	Guid  string `xml:"Guid,attr"`
	Mode  string `xml:"Mode,attr"`
	FID   string `xml:"FID,attr"`
	Patch string `xml:"Patch,attr"`
}

// Parse reads an MA3 patch export. The root element must be literally
// GMA3 or the file is rejected.
func Parse(data []byte) ([]fixture.RawFixture, error) {
	var doc gma3XML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ma3 patch xml: %w", err)
	}

	fixtures := make([]fixture.RawFixture, 0, len(doc.Fixtures))
	counter := 1
	for _, fx := range doc.Fixtures {
		name := fx.Name
		if name == "" {
			name = fmt.Sprintf("Fixture_%d", counter)
		}

		patch := fx.Patch
		if patch == "" {
			patch = "1.001"
		}
		universe, channel := parsePatch(patch)

		fixtureID := counter
		if n, err := strconv.Atoi(fx.FID); err == nil {
			fixtureID = n
		}

		fixtures = append(fixtures, fixture.RawFixture{
			Name:         name,
			UUID:         fx.Guid,
			DeclaredType: typeFromMode(fx.Mode),
			DeclaredMode: fx.Mode,
			BaseAddress:  fixture.AbsoluteAddress(universe, channel),
			FixtureID:    fixtureID,
		})
		counter++
	}
	return fixtures, nil
}

// ParseFile reads an MA3 patch export from disk.
func ParseFile(path string) ([]fixture.RawFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ma3 patch file: %w", err)
	}
	return Parse(data)
}

// parsePatch splits an MA3 patch address like "101.206" into universe
// 101, channel 206. A bare number is a channel in universe 1; garbage
// defaults to 1.1.
func parsePatch(patch string) (int, int) {
	if i := strings.IndexByte(patch, '.'); i >= 0 {
		universe, err1 := strconv.Atoi(strings.TrimSpace(patch[:i]))
		rest := patch[i+1:]
		if j := strings.IndexByte(rest, '.'); j >= 0 {
			rest = rest[:j]
		}
		channel, err2 := strconv.Atoi(strings.TrimSpace(rest))
		if err1 == nil && err2 == nil {
			return universe, channel
		}
		return 1, 1
	}
	if channel, err := strconv.Atoi(strings.TrimSpace(patch)); err == nil {
		return 1, channel
	}
	return 1, 1
}

// typeFromMode pulls the fixture type out of an MA3 mode reference
// ("2.DMXModes.8 bit" names type "2").
func typeFromMode(mode string) string {
	if i := strings.IndexByte(mode, '.'); i >= 0 {
		return mode[:i]
	}
	return mode
}
