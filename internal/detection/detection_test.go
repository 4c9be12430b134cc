package detection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		minConf float64
		want    Batch
		wantErr bool
	}{
		{
			name:    "framed with bbox",
			payload: `{"detections":[{"class_id":0,"confidence":0.91,"bbox":[1,2,3,4]},{"class_id":56,"confidence":0.7}]}`,
			minConf: 0.5,
			want:    Batch{{ClassID: 0, Confidence: 0.91}, {ClassID: 56, Confidence: 0.7}},
		},
		{
			name:    "bare list",
			payload: `[{"class_id":2,"confidence":0.6}]`,
			minConf: 0.5,
			want:    Batch{{ClassID: 2, Confidence: 0.6}},
		},
		{
			name:    "confidence threshold filters",
			payload: `[{"class_id":2,"confidence":0.4},{"class_id":3,"confidence":0.5}]`,
			minConf: 0.5,
			want:    Batch{{ClassID: 3, Confidence: 0.5}},
		},
		{
			name:    "empty detection list is valid",
			payload: `{"detections":[]}`,
			want:    Batch{},
		},
		{
			name:    "unknown class ids pass through",
			payload: `[{"class_id":-7,"confidence":0.9}]`,
			want:    Batch{{ClassID: -7, Confidence: 0.9}},
		},
		{name: "blank", payload: "   \n", wantErr: true},
		{name: "not json", payload: "1.0,2.0,3.0", wantErr: true},
		{name: "missing class", payload: `[{"confidence":0.9}]`, wantErr: true},
		{name: "negative confidence", payload: `[{"class_id":1,"confidence":-1}]`, wantErr: true},
		{name: "truncated", payload: `{"detections":[`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.payload), tt.minConf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseBlankReturnsSentinel(t *testing.T) {
	_, err := Parse(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	in := Batch{{ClassID: 0, Confidence: 0.8}, {ClassID: 15, Confidence: 0.55}}
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Parse(data, 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
