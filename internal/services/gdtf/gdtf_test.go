package gdtf

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive assembles an in-memory ZIP with the given entries.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const parDescription = `<?xml version="1.0" encoding="UTF-8"?>
<GDTF DataVersion="1.2">
  <FixtureType Name="Generic PAR">
    <AttributeDefinitions>
      <ActivationGroups>
        <ActivationGroup Name="ColorRGB"/>
      </ActivationGroups>
      <Attributes>
        <Attribute Name="Dimmer" Pretty="Dim"/>
        <Attribute Name="ColorAdd_R" Pretty="R" ActivationGroup="ColorRGB"/>
        <Attribute Name="ColorAdd_G" Pretty="G" ActivationGroup="ColorRGB"/>
        <Attribute Name="ColorAdd_B" Pretty="B" ActivationGroup="ColorRGB"/>
        <Attribute Name="NoFeature"/>
        <Attribute Name="Shutter1"/>
      </Attributes>
    </AttributeDefinitions>
    <DMXModes>
      <DMXMode Name="Standard">
        <DMXChannels>
          <DMXChannel Offset="1">
            <LogicalChannel Attribute="Dimmer"/>
          </DMXChannel>
          <DMXChannel Offset="2">
            <LogicalChannel Attribute="ColorAdd_R"/>
          </DMXChannel>
          <DMXChannel Offset="3">
            <LogicalChannel Attribute="ColorAdd_G"/>
          </DMXChannel>
          <DMXChannel Offset="4">
            <LogicalChannel Attribute="ColorAdd_B"/>
          </DMXChannel>
          <DMXChannel Offset="5">
            <LogicalChannel Attribute="NoFeature"/>
          </DMXChannel>
        </DMXChannels>
      </DMXMode>
      <DMXMode Name="Extended">
        <DMXChannels>
          <DMXChannel Offset="1,2">
            <LogicalChannel Attribute="Dimmer"/>
          </DMXChannel>
          <DMXChannel Offset="3">
            <LogicalChannel Attribute="Shutter1"/>
          </DMXChannel>
          <DMXChannel Offset="None">
            <LogicalChannel Attribute="ColorAdd_R"/>
          </DMXChannel>
        </DMXChannels>
      </DMXMode>
    </DMXModes>
  </FixtureType>
</GDTF>`

func TestParse_FullDescription(t *testing.T) {
	data := buildArchive(t, map[string]string{"description.xml": parDescription})

	p, err := Parse(data, "generic_par")
	require.NoError(t, err)

	assert.Equal(t, "Generic PAR", p.Name)
	require.Len(t, p.Modes, 2)
	assert.Equal(t, []string{"Standard", "Extended"}, p.ModeOrder)

	std := p.Modes["Standard"]
	require.NotNil(t, std)
	assert.Equal(t, map[string]int{"Dim": 1, "R": 2, "G": 3, "B": 4}, std.Channels)
	assert.Equal(t, 4, std.TotalChannels)
	assert.Equal(t, "ColorRGB", std.ActivationGroups["R"])
	assert.NotContains(t, std.ActivationGroups, "Dim")
}

// NoFeature channels never become attributes.
func TestParse_ExcludesNoFeature(t *testing.T) {
	data := buildArchive(t, map[string]string{"description.xml": parDescription})

	p, err := Parse(data, "x")
	require.NoError(t, err)
	assert.NotContains(t, p.Modes["Standard"].Channels, "NoFeature")
}

// Multi-byte channels address by their first offset; "None" offsets
// drop the channel.
func TestParse_OffsetHandling(t *testing.T) {
	data := buildArchive(t, map[string]string{"description.xml": parDescription})

	p, err := Parse(data, "x")
	require.NoError(t, err)

	ext := p.Modes["Extended"]
	require.NotNil(t, ext)
	assert.Equal(t, 1, ext.Channels["Dim"])
	// Shutter1 has no Pretty, the reference name survives as-is.
	assert.Equal(t, 3, ext.Channels["Shutter1"])
	assert.NotContains(t, ext.Channels, "R")
}

func TestParse_NameFallsBackToStem(t *testing.T) {
	desc := `<GDTF><FixtureType><DMXModes/></FixtureType></GDTF>`
	data := buildArchive(t, map[string]string{"description.xml": desc})

	p, err := Parse(data, "My Fixture")
	require.NoError(t, err)
	assert.Equal(t, "My Fixture", p.Name)
}

func TestParse_NestedDescriptionEntry(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"subdir/description.xml": parDescription,
	})

	p, err := Parse(data, "x")
	require.NoError(t, err)
	assert.Equal(t, "Generic PAR", p.Name)
}

func TestParse_ExactEntryBeatsNested(t *testing.T) {
	other := `<GDTF><FixtureType Name="Wrong"><DMXModes/></FixtureType></GDTF>`
	data := buildArchive(t, map[string]string{
		"nested/description.xml": other,
		"description.xml":        parDescription,
	})

	p, err := Parse(data, "x")
	require.NoError(t, err)
	assert.Equal(t, "Generic PAR", p.Name)
}

func TestParse_NoDescription(t *testing.T) {
	data := buildArchive(t, map[string]string{"thumbnail.png": "binary"})

	_, err := Parse(data, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description.xml")
}

func TestParse_NotAZip(t *testing.T) {
	_, err := Parse([]byte("plain text"), "x")
	require.Error(t, err)
}

// Unresolvable attribute references keep the reference string.
func TestParse_UnresolvableReference(t *testing.T) {
	desc := `<GDTF><FixtureType Name="F">
	  <DMXModes>
	    <DMXMode Name="M">
	      <DMXChannels>
	        <DMXChannel Offset="1"><LogicalChannel Attribute="Mystery"/></DMXChannel>
	      </DMXChannels>
	    </DMXMode>
	  </DMXModes>
	</FixtureType></GDTF>`
	data := buildArchive(t, map[string]string{"description.xml": desc})

	p, err := Parse(data, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Modes["M"].Channels["Mystery"])
}

// Modes without a name are dropped; empty modes are kept.
func TestParse_ModeFiltering(t *testing.T) {
	desc := `<GDTF><FixtureType Name="F">
	  <DMXModes>
	    <DMXMode>
	      <DMXChannels><DMXChannel Offset="1"><LogicalChannel Attribute="X"/></DMXChannel></DMXChannels>
	    </DMXMode>
	    <DMXMode Name="Empty"><DMXChannels/></DMXMode>
	  </DMXModes>
	</FixtureType></GDTF>`
	data := buildArchive(t, map[string]string{"description.xml": desc})

	p, err := Parse(data, "x")
	require.NoError(t, err)
	require.Len(t, p.Modes, 1)
	assert.Equal(t, 0, p.Modes["Empty"].TotalChannels)
	assert.NotNil(t, p.FirstMode())
}

func TestFirstOffset(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"1", 1, true},
		{"5,6", 5, true},
		{" 7 , 8 ", 7, true},
		{"None", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
	}
	for _, tt := range tests {
		got, ok := firstOffset(tt.raw)
		assert.Equal(t, tt.wantOK, ok, "firstOffset(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "firstOffset(%q)", tt.raw)
	}
}

func TestResolveAttribute(t *testing.T) {
	defs := map[string]attributeDef{
		"Dimmer":    {pretty: "Dim"},
		"ColorAdd":  {pretty: "R", activationGroup: "ColorRGB"},
		"Shutter":   {},
		"GroupOnly": {activationGroup: "Beam"},
	}

	name, group := resolveAttribute("Dimmer", defs)
	assert.Equal(t, "Dim", name)
	assert.Equal(t, "", group)

	name, group = resolveAttribute("ColorAdd", defs)
	assert.Equal(t, "R", name)
	assert.Equal(t, "ColorRGB", group)

	name, group = resolveAttribute("GroupOnly", defs)
	assert.Equal(t, "GroupOnly", name)
	assert.Equal(t, "Beam", group)

	name, group = resolveAttribute("Missing", defs)
	assert.Equal(t, "Missing", name)
	assert.Equal(t, "", group)
}
