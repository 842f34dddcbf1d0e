package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/chatcap/internal/document"
)

// Document opens path in $EDITOR (less when unset), positioned at message
// messageIndex when it can be located; -1 opens at the top.
func Document(store *document.Store, path string, messageIndex int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", document.ErrNotFound, path)
	}

	lineNum := 1
	if messageIndex >= 0 {
		if doc, err := store.Load(path); err == nil {
			lineNum = document.MessageLine(doc, messageIndex)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := editorCommand(editor, path, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less") || strings.Contains(editor, "nano"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}
