package board

import (
	"strings"
	"testing"
)

func TestKeyPatterns(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"boards", BoardsKey("default"), "chalk:default:boards"},
		{"board", BoardKey("default", "team"), "chalk:default:board:team"},
		{"snapshot", SnapshotKey("default", "team"), "chalk:default:board:team:snapshot"},
		{"data", DataKey("default", "team"), "chalk:default:board:team:data"},
		{"ops", OperationsChannel("prod"), "chalk:prod:ops"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s key = %q, expected %q", tt.name, tt.got, tt.want)
		}
		if !strings.HasPrefix(tt.got, "chalk:") {
			t.Errorf("%s key should start with 'chalk:'", tt.name)
		}
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	if BoardKey("a", "x") == BoardKey("b", "x") {
		t.Error("board keys must differ across namespaces")
	}
	if DataKey("a", "x") == SnapshotKey("a", "x") {
		t.Error("data and snapshot keys must differ")
	}
}
