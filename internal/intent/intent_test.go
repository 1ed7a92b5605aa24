package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Hello there", Greeting},
		{"good morning, when is registration?", Greeting},
		{"What are the JAMB requirements?", Admissions},
		{"How do I pay my fees", Fees},
		{"Where do I get my RRR", Fees},
		{"How do I get hostel accommodation?", Hostel},
		{"What is the grading system?", Academic},
		{"when does the semester start", Academic},
		{"Where is the library", Campus},
		{"ICT support phone number", Contacts},
		{"Who is the Vice-Chancellor?", Leadership},
		{"asdkjasdkj random text", General},
		{"", General},
		// admissions is checked before fees
		{"admission fee", Admissions},
		// word boundaries: "payroll" is not "pay"
		{"payroll office", General},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := Classify(tt.message)
			assert.Equal(t, tt.want, got.Intent)
			if tt.want == General {
				assert.Equal(t, GeneralConfidence, got.Confidence)
			} else {
				assert.Equal(t, MatchedConfidence, got.Confidence)
			}
		})
	}
}

func TestClassifyConfidenceRelativeToThreshold(t *testing.T) {
	// Matched intents clear the 0.8 low-confidence bar, general does not
	assert.GreaterOrEqual(t, Classify("hostel").Confidence, 0.8)
	assert.Less(t, Classify("tell me something").Confidence, 0.8)
}

func TestExtractEntities(t *testing.T) {
	got := ExtractEntities("I am in 300 level, Faculty of Computing, and failed CSC 301 and MTH201")
	want := map[string][]string{
		"course_code": {"CSC 301", "MTH201"},
		"level":       {"300 level"},
		"faculty":     {"Faculty of Computing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractEntities() mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, ExtractEntities("how do I pay my fees"))
}
