package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/analysis"
)

var defaultFields = []string{
	"Black Box Warning",
	"Black Box Text",
	"Compound",
	"Approval",
	"Study",
	"N for each study",
	"Dose for each study",
	"Clinical Efficacy",
	"Clinical Safety",
	"Clinical Discontinuation",
}

func TestExtractorSchema(t *testing.T) {
	x := NewDefaultExtractor(nil)
	schema := x.Schema()

	assert.Equal(t, IDColumn, schema[0])
	assert.Equal(t, defaultFields, schema.Fields())
}

func TestExtractEmptyBlocks(t *testing.T) {
	x := NewDefaultExtractor(nil)

	rec := x.Extract("pdf/empty.pdf", nil)

	assert.Equal(t, "pdf/empty.pdf", rec.Source())
	for _, r := range DefaultRules() {
		v, ok := rec.Get(r.Field)
		require.True(t, ok, r.Field)
		assert.Equal(t, r.Default, v, r.Field)
	}
	bbw, _ := rec.Get("Black Box Warning")
	assert.Equal(t, "N", bbw)
	compound, _ := rec.Get("Compound")
	assert.Equal(t, NotAvailable, compound)
}

func TestExtractBoxedWarningAndCompound(t *testing.T) {
	x := NewDefaultExtractor(nil)

	rec := x.Extract("label.pdf", []analysis.Block{
		line(1, "BLACK BOX WARNING: may cause X"),
		line(1, "Compound Name: Aspirin"),
	})

	m := rec.Map()
	assert.Equal(t, "Y", m["Black Box Warning"])
	assert.Contains(t, m["Black Box Text"], "BLACK BOX WARNING: may cause X")
	assert.Equal(t, "Aspirin", m["Compound"])
	for _, f := range defaultFields[3:] {
		assert.Equal(t, NotAvailable, m[f], f)
	}
	assert.Len(t, m, len(defaultFields)+1)
}

func TestExtractSectionFields(t *testing.T) {
	x := NewDefaultExtractor(nil)

	rec := x.Extract("label.pdf", []analysis.Block{
		line(1, "Initial U.S. Approval: 1998"),
		line(2, "Study Number: 000; N = 50; Dose: 1 mg"),
		line(3, "Section 14 Clinical Studies"),
		line(3, "Study Number: 301; N = 120; Dose: 10 mg; Efficacy: 45% responders"),
		line(4, "Safety: headache 5%; Discontinuation: 2%"),
		line(4, "Study Number: 302; N = 98; Dose: 20 mg; Efficacy: 51% responders"),
		line(5, "Section 15 References"),
		line(5, "Study Number: 999"),
	})

	m := rec.Map()
	assert.Equal(t, "1998", m["Approval"])
	assert.Equal(t, "301; 302", m["Study"])
	assert.Equal(t, "120; 98", m["N for each study"])
	assert.Equal(t, "10 mg; 20 mg", m["Dose for each study"])
	assert.Equal(t, "45% responders; 51% responders", m["Clinical Efficacy"])
	assert.Equal(t, "headache 5%", m["Clinical Safety"])
	assert.Equal(t, "2%", m["Clinical Discontinuation"])
	assert.Equal(t, "N", m["Black Box Warning"])
}

func TestExtractBlankLabelValuesKeepDefaults(t *testing.T) {
	x := NewDefaultExtractor(nil)

	tests := []struct {
		name   string
		blocks []analysis.Block
		want   map[string]string
	}{
		{
			name:   "blank compound",
			blocks: []analysis.Block{line(1, "Compound Name: ")},
			want:   map[string]string{"Compound": NotAvailable},
		},
		{
			name:   "blank approval",
			blocks: []analysis.Block{line(1, "Initial U.S. Approval:  ")},
			want:   map[string]string{"Approval": NotAvailable},
		},
		{
			name: "blank label before a real one",
			blocks: []analysis.Block{
				line(1, "Compound Name:   "),
				line(2, "Compound Name: Aspirin"),
			},
			want: map[string]string{"Compound": "Aspirin"},
		},
		{
			name: "blank section values",
			blocks: []analysis.Block{
				line(3, "Section 14 Clinical Studies"),
				line(3, "Dose: ; Efficacy: ;"),
				line(4, "Section 15 References"),
			},
			want: map[string]string{
				"Dose for each study": NotAvailable,
				"Clinical Efficacy":   NotAvailable,
			},
		},
		{
			name: "blank dose among real doses",
			blocks: []analysis.Block{
				line(3, "Section 14 Clinical Studies"),
				line(3, "Dose: ; Dose: 10 mg;"),
				line(4, "Dose:  ; Dose: 20 mg"),
				line(5, "Section 15 References"),
			},
			want: map[string]string{"Dose for each study": "10 mg; 20 mg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := x.Extract("label.pdf", tt.blocks).Map()
			for field, want := range tt.want {
				assert.Equal(t, want, m[field], field)
			}
			for _, v := range SplitMulti(m["Dose for each study"]) {
				assert.NotContains(t, v, ":", "dose list holds a label heading")
			}
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	x := NewDefaultExtractor(nil)
	blocks := []analysis.Block{
		line(1, "Boxed Warning: serious infections"),
		line(2, "Section 14"),
		line(2, "Study Number: A1; N = 10"),
	}

	first, err := json.Marshal(x.Extract("a.pdf", blocks))
	require.NoError(t, err)
	second, err := json.Marshal(x.Extract("a.pdf", blocks))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, x.Extract("a.pdf", blocks).Row(), x.Extract("a.pdf", blocks).Row())
}

func TestRecordRow(t *testing.T) {
	x := NewDefaultExtractor(nil)
	rec := x.Extract("k.pdf", []analysis.Block{line(1, "Compound: Ibuprofen")})

	row := rec.Row()
	require.Len(t, row, len(defaultFields)+1)
	assert.Equal(t, "k.pdf", row[0])
	assert.Equal(t, "N", row[1])
	assert.Equal(t, "Ibuprofen", row[3])

	_, ok := rec.Get("Not A Field")
	assert.False(t, ok)
}

func TestRecordMarshalJSON(t *testing.T) {
	x := NewDefaultExtractor(nil)
	rec := x.Extract("k.pdf", nil)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "k.pdf", decoded[IDColumn])
	assert.Equal(t, NotAvailable, decoded["Study"])
}
