package powerwords

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyDangerousKeyword(t *testing.T) {
	a := NewAssessor([]string{"rm", "sudo", "shutdown"}, nil)

	require.Equal(t, ClassDangerous, a.Classify("rm -rf /tmp/x"))
	require.Equal(t, ClassDangerous, a.Classify("SUDO apt upgrade"))
	require.Equal(t, ClassDangerous, a.Classify("shutdown -h now"))
}

func TestClassifySafePatterns(t *testing.T) {
	a := NewAssessor(nil, nil)

	require.Equal(t, ClassSafe, a.Classify("https://example.com"))
	require.Equal(t, ClassSafe, a.Classify("C:\\Users\\me\\Desktop\\app.lnk"))
	require.Equal(t, ClassSafe, a.Classify("notepad"))
}

func TestClassifyAllowedCommand(t *testing.T) {
	a := NewAssessor(nil, []string{"firefox"})

	require.Equal(t, ClassSafe, a.Classify("firefox --new-window"))
}

func TestClassifyUnknown(t *testing.T) {
	a := NewAssessor([]string{"rm"}, []string{"firefox"})

	require.Equal(t, ClassUnknown, a.Classify("vlc movie.mkv"))
}

func TestClassifyDangerousWinsOverAllowed(t *testing.T) {
	a := NewAssessor([]string{"rm"}, []string{"rm"})

	require.Equal(t, ClassDangerous, a.Classify("rm notes.txt"))
}
