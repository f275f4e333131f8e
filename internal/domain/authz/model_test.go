package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

func TestParseRef(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    Ref
		wantErr bool
	}{
		{name: "numeric id", in: "123456", want: Ref{ID: 123456}},
		{name: "id with spaces", in: "  42 ", want: Ref{ID: 42}},
		{name: "username with at", in: "@Alice_99", want: Ref{Username: "alice_99"}},
		{name: "username without at", in: "BobTheFan", want: Ref{Username: "bobthefan"}},
		{name: "empty", in: "", wantErr: true},
		{name: "whitespace only", in: "   ", wantErr: true},
		{name: "zero id", in: "0", wantErr: true},
		{name: "negative id", in: "-5", wantErr: true},
		{name: "username too short", in: "@ab", wantErr: true},
		{name: "username with spaces", in: "@bad name", wantErr: true},
		{name: "username with punctuation", in: "@no!no", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRef(tc.in)
			if tc.wantErr {
				assert.True(t, errs.IsKind(err, errs.KindValidation), "expected validation error, got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("@Alice"))
	assert.Equal(t, "alice", NormalizeUsername(" alice "))
	assert.Equal(t, "", NormalizeUsername(""))
	assert.Equal(t, "", NormalizeUsername("@!"))
}
