package merchant

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"STARBUCKS   #1234", "Starbucks #1234"},
		{"  café du monde ", "Cafe Du Monde"},
		{"Crème Brûlée Co", "Creme Brulee Co"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}

func TestNormalize_FirstRuleWins(t *testing.T) {
	r, err := Parse(strings.NewReader("pattern,canonical\namzn|amazon,Amazon\namazon fresh,Amazon Fresh\n^sq \\*,Square\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	assert.Equal(t, "Amazon", r.Normalize("AMZN Mktp US*2K3"))
	assert.Equal(t, "Amazon", r.Normalize("Amazon Fresh 123"))
	assert.Equal(t, "Square", r.Normalize("SQ *BLUE BOTTLE"))
	assert.Equal(t, "Trader Joe's", r.Normalize("TRADER JOE'S"))
}

func TestNormalize_NilRules(t *testing.T) {
	var r *Rules
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "Whole Foods", r.Normalize("WHOLE  FOODS"))
}

func TestNormalize_ExplicitFlags(t *testing.T) {
	r, err := NewRules(Rule{Pattern: "(?-i)UBER", Canonical: "Uber"})
	require.NoError(t, err)

	assert.Equal(t, "Uber", r.Normalize("UBER TRIP"))
	assert.Equal(t, "Uber Eats Pending", r.Normalize("uber eats pending"))
}

func TestNormalize_LeadingGroupStillCaseInsensitive(t *testing.T) {
	tests := []struct {
		pattern, raw, want string
	}{
		{`(?:amzn|amazon) mktp`, "AMZN MKTP US", "Amazon"},
		{`(?P<brand>amzn) mktp`, "Amzn Mktp", "Amazon"},
		{`(?i:amzn) MKTP`, "amzn mktp", "Amazon"},
		{`(?s)amzn.mktp`, "amzn\nmktp", "Amazon"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			r, err := NewRules(Rule{Pattern: tt.pattern, Canonical: "Amazon"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Normalize(tt.raw))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"bad header", "regex,name\nx,y\n", "header must be"},
		{"bad regex", "pattern,canonical\n(,Broken\n", "rule 1"},
		{"wrong width", "pattern,canonical\nx,y,z\n", "wrong number of fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "merchant-rules.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(`costco\s+whse`, "Costco"))
	assert.ErrorIs(t, Validate("(", "X"), ErrInvalidPattern)
	assert.ErrorIs(t, Validate("", "X"), ErrInvalidPattern)
	assert.ErrorIs(t, Validate("x", ""), ErrInvalidName)
	assert.ErrorIs(t, Validate("x", "Foo, Inc"), ErrInvalidName)
	assert.ErrorIs(t, Validate("x", `Say "hi"`), ErrInvalidName)
	assert.ErrorIs(t, Validate("x", "Line\nBreak"), ErrInvalidName)
}

func TestAddRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merchant-rules.csv")

	require.NoError(t, AddRule(path, `costco\s+whse`, "Costco"))
	require.NoError(t, AddRule(path, "a{1,3}b", " Triple A "))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pattern,canonical\ncostco\\s+whse,Costco\n\"a{1,3}b\",Triple A\n", string(data))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Costco", r.Normalize("COSTCO WHSE #0481"))
	assert.Equal(t, "Triple A", r.Normalize("aab"))
}

func TestAddRule_AppendsAfterMissingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merchant-rules.csv")
	require.NoError(t, os.WriteFile(path, []byte("pattern,canonical\nshell,Shell"), 0o644))

	require.NoError(t, AddRule(path, "chevron", "Chevron"))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestAddRule_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merchant-rules.csv")

	assert.ErrorIs(t, AddRule(path, "([", "Bad"), ErrInvalidPattern)
	assert.ErrorIs(t, AddRule(path, "ok", "a,b"), ErrInvalidName)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rejected rule must not create the file")
}

func TestAddRule_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merchant-rules.csv")
	require.NoError(t, os.WriteFile(path, []byte("something,else\n"), 0o644))

	err := AddRule(path, "x", "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header must be")
}
