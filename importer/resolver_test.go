package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrinting(t *testing.T) {
	tests := []struct {
		name      string
		printings []string
		wantSet   string
	}{
		{
			name: "image uris win over everything else",
			printings: []string{
				`{"setCode": "ZEN", "identifiers": {"cardmarketId": 1}}`,
				`{"setCode": "AAA", "imageUris": {"normal": "x"}}`,
			},
			wantSet: "AAA",
		},
		{
			name: "marketplace id wins when images tie",
			printings: []string{
				`{"setCode": "ZEN"}`,
				`{"setCode": "M10", "identifiers": {"cardmarketId": 22}}`,
			},
			wantSet: "M10",
		},
		{
			name: "greater set code wins when the rest ties",
			printings: []string{
				`{"setCode": "2ED"}`,
				`{"setCode": "LEB"}`,
				`{"setCode": "LEA"}`,
			},
			wantSet: "LEB",
		},
		{
			name: "greater set code wins even when it is older",
			printings: []string{
				`{"setCode": "M21"}`,
				`{"setCode": "LEA"}`,
			},
			wantSet: "M21",
		},
		{
			name: "full tie keeps input order",
			printings: []string{
				`{"setCode": "LEA", "number": "1"}`,
				`{"setCode": "LEA", "number": "2"}`,
			},
			wantSet: "LEA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]Raw, len(tt.printings))
			for i, p := range tt.printings {
				in[i] = raw(t, p)
			}
			got := ResolvePrinting(in)
			assert.Equal(t, tt.wantSet, setCode(got, ""))
		})
	}
}

func TestResolvePrintingStable(t *testing.T) {
	in := []Raw{
		raw(t, `{"setCode": "LEA", "number": "1"}`),
		raw(t, `{"setCode": "LEA", "number": "2"}`),
		raw(t, `{"setCode": "ICE", "number": "3"}`),
	}
	first := ResolvePrinting(in)
	second := ResolvePrinting(in)

	assert.Equal(t, first, second)
	assert.Equal(t, "1", *first.str("number"))
	// input is not reordered
	assert.Equal(t, "1", *in[0].str("number"))
	assert.Equal(t, "3", *in[2].str("number"))
}

func TestResolvePrintingEmpty(t *testing.T) {
	assert.Nil(t, ResolvePrinting(nil))
}
