package export

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

// dataVersion is the GMA3 show file format version the console accepts.
const dataVersion = "2.2.5.2"

// MA3Config carries the trigger and range parameters of the DMX remote
// export. Trigger and input values are 8-bit, output values percentages.
type MA3Config struct {
	TriggerOn  int     `json:"trigger_on"`
	TriggerOff int     `json:"trigger_off"`
	InFrom     int     `json:"in_from"`
	InTo       int     `json:"in_to"`
	OutFrom    float64 `json:"out_from"`
	OutTo      float64 `json:"out_to"`
	Resolution string  `json:"resolution"`
}

// DefaultMA3Config returns the configuration used when the caller has
// no stored preferences.
func DefaultMA3Config() MA3Config {
	return MA3Config{
		TriggerOn:  255,
		TriggerOff: 0,
		InFrom:     0,
		InTo:       255,
		OutFrom:    0.0,
		OutTo:      100.0,
		Resolution: "16bit",
	}
}

// Validate checks every parameter against the ranges the console
// accepts.
func (c MA3Config) Validate() error {
	byteFields := map[string]int{
		"trigger_on":  c.TriggerOn,
		"trigger_off": c.TriggerOff,
		"in_from":     c.InFrom,
		"in_to":       c.InTo,
	}
	for _, name := range []string{"trigger_on", "trigger_off", "in_from", "in_to"} {
		if v := byteFields[name]; v < 0 || v > 255 {
			return fmt.Errorf("%s must be between 0 and 255, got %d", name, v)
		}
	}
	if c.OutFrom < 0 || c.OutFrom > 100 {
		return fmt.Errorf("out_from must be between 0 and 100, got %g", c.OutFrom)
	}
	if c.OutTo < 0 || c.OutTo > 100 {
		return fmt.Errorf("out_to must be between 0 and 100, got %g", c.OutTo)
	}
	switch c.Resolution {
	case "8bit", "16bit", "24bit":
	default:
		return fmt.Errorf("resolution must be 8bit, 16bit or 24bit, got %q", c.Resolution)
	}
	return nil
}

// valueToHex renders an 8-bit value as the console's 6-character color
// string, the byte repeated across all three components.
func valueToHex(value int) string {
	h := fmt.Sprintf("%02X", value)
	return h + h + h
}

// newGUID produces a GUID in the console's format: uppercase hex with
// spaces where a UUID has dashes. Fresh per export, never stable.
func newGUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", " "))
}

var xmlAttrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeAttr(s string) string {
	return xmlAttrEscaper.Replace(s)
}

// RenderMA3Remotes produces a GMA3 document with one DmxRemote element
// per export row. The Target attribute is only written when the row
// carries a sequence number. Attribute order is fixed; the console's
// importer depends on it.
func RenderMA3Remotes(c *fixture.Collection, selections map[string][]string, cfg *MA3Config) (string, error) {
	if cfg == nil {
		return "", ErrMissingConfig
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	rows, err := Rows(c, selections)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<GMA3 DataVersion=%q>\n", dataVersion)
	for _, r := range rows {
		name := fmt.Sprintf("%d_%s_%s", r.FixtureID, r.FixtureName, r.Attribute)
		fmt.Fprintf(&b, `    <DmxRemote Name="%s" Guid="%s"`, escapeAttr(name), newGUID())
		if r.Sequence != 0 {
			fmt.Fprintf(&b, ` Target="ShowData.DataPools.Default.Sequences.%d"`, r.Sequence)
		}
		fmt.Fprintf(&b, ` TriggerOn="%s" TriggerOff="%s" InFrom="%s" InTo="%s" OutFrom="%6.1f" OutTo="%6.1f" Address="%s" Resolution="%s"/>`,
			valueToHex(cfg.TriggerOn), valueToHex(cfg.TriggerOff),
			valueToHex(cfg.InFrom), valueToHex(cfg.InTo),
			cfg.OutFrom, cfg.OutTo,
			r.AddressString(), escapeAttr(cfg.Resolution))
		b.WriteString("\n")
	}
	b.WriteString("</GMA3>")
	return b.String(), nil
}

// sequenceBoilerplate is the fixed attribute tail every exported
// sequence carries, verbatim from the console's own show files.
const sequenceBoilerplate = `AutoStart="Yes" AutoStop="Yes" AutoFix="No" AutoStomp="No" SoftLTP="Yes" ` +
	`XFadeReload="No" SwapProtect="No" KillProtect="No" UseExecutorTime="Yes" OffwhenOverridden="Yes" ` +
	`SequMIB="Enabled" AutoPrePos="No" WrapAround="Yes" MasterGoMode="None" SpeedfromRate="No" ` +
	`Tracking="Yes" IncludeLinkLastGo="Yes" RateScale="One" SpeedScale="One" PreferCueAppearance="No" ` +
	`ExecutorDisplayMode="Both" Action="Pool Default"`

// cuePartAttrs is the shared Part attribute tail; Guid comes first and
// is generated per part.
const cuePartAttrs = `AlignRangeX="No" AlignRangeY="No" AlignRangeZ="No" PreserveGridPositions="No" ` +
	`MAgic="No" Mode="0" Action="Pool Default"`

// RenderMA3Sequences produces a GMA3 document with one Sequence per
// (fixture, attribute) row that carries a sequence number. Each
// sequence holds the console's fixed OffCue and CueZero plus a data cue
// with a single Phaser whose step value is 100. The Phaser's attribute
// name is prefixed with the channel's activation group when one exists.
func RenderMA3Sequences(c *fixture.Collection, selections map[string][]string) (string, error) {
	rows, err := Rows(c, selections)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<GMA3 DataVersion=%q>\n", dataVersion)
	for _, r := range rows {
		if r.Sequence == 0 {
			continue
		}
		writeSequence(&b, r)
	}
	b.WriteString("</GMA3>")
	return b.String(), nil
}

func writeSequence(b *strings.Builder, r Row) {
	attrName := r.Attribute
	if r.ActivationGroup != "" {
		attrName = r.ActivationGroup + "_" + r.Attribute
	}
	attrName = escapeAttr(attrName)

	fmt.Fprintf(b, `    <Sequence Name="%s" Guid="%s" %s>`+"\n",
		escapeAttr(fmt.Sprintf("%d_%s", r.FixtureID, r.Attribute)), newGUID(), sequenceBoilerplate)

	fmt.Fprintf(b, `        <Cue Name="OffCue" Release="Yes" Assert="Assert" AllowDuplicates="" TrigType="">`+"\n")
	fmt.Fprintf(b, `            <Part Guid="%s" %s/>`+"\n", newGUID(), cuePartAttrs)
	b.WriteString("        </Cue>\n")

	fmt.Fprintf(b, `        <Cue Name="CueZero" No="  0">`+"\n")
	fmt.Fprintf(b, `            <Part Guid="%s" %s/>`+"\n", newGUID(), cuePartAttrs)
	b.WriteString("        </Cue>\n")

	fmt.Fprintf(b, `        <Cue No="  1" AllowDuplicates="">`+"\n")
	fmt.Fprintf(b, `            <Part Guid="%s" %s Sync="" Morph="">`+"\n", newGUID(), cuePartAttrs)
	b.WriteString(`                <PresetData Size="1">` + "\n")
	fmt.Fprintf(b, `                    <Phaser IDType="0" ID="%d" Attribute="%s" GridPos="0" GridPosMatr="0" Selective="true">`+"\n",
		r.FixtureID, attrName)
	fmt.Fprintf(b, `                        <Step Function="%s" Absolute="100"/>`+"\n", attrName)
	b.WriteString("                    </Phaser>\n")
	b.WriteString("                </PresetData>\n")
	b.WriteString("            </Part>\n")
	b.WriteString("        </Cue>\n")
	b.WriteString("    </Sequence>\n")
}
