package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The grant/ban paths lock the username parsed from the command and
// first-message resolution locks the raw transport username; the fix
// for lost pending grants depends on both mapping to one lock key.
func TestPendingLockKeyAgreement(t *testing.T) {
	ref, err := ParseRef("@Alice_99")
	require.NoError(t, err)
	assert.Equal(t, ref.Username, NormalizeUsername("Alice_99"))
	assert.Equal(t, ref.Username, NormalizeUsername("@ALICE_99"))
}

func TestPendingKeys(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty inputs dropped", []string{"", "  ", ""}, nil},
		{"normalized", []string{"@Alice", "bob"}, []string{"alice", "bob"}},
		{"duplicates collapse across forms", []string{"alice", "@Alice", "ALICE"}, []string{"alice"}},
		{"ref plus ban row plus user row", []string{"", "alice", "alice"}, []string{"alice"}},
		{"invalid names dropped", []string{"a", "has space", "ok_name"}, []string{"ok_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pendingKeys(tt.input...))
		})
	}
}
