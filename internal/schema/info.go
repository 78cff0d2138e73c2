package schema

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// AnnotationAuthor is the cobra.Command annotation holding the author shown in the info panel.
const AnnotationAuthor = "author"

// AppInfo holds the display only metadata of a command.
type AppInfo struct {
	Name      string
	Version   string
	About     string
	LongAbout string
	Author    string
}

func NewAppInfo(cmd *cobra.Command) AppInfo {
	return AppInfo{
		Name:      programName(cmd),
		Version:   cmd.Version,
		About:     cmd.Short,
		LongAbout: cmd.Long,
		Author:    cmd.Annotations[AnnotationAuthor],
	}
}

// HasDetails reports whether there is anything to show beyond the name and about line.
func (i AppInfo) HasDetails() bool {
	return i.LongAbout != "" || i.Author != "" || i.Version != ""
}

func programName(cmd *cobra.Command) string {
	if name := cmd.Name(); name != "" {
		return name
	}
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exe)
}

// Program returns the first token of a serialized invocation: the path of the running
// executable, falling back to the command name.
func Program(cmd *cobra.Command) string {
	exe, err := os.Executable()
	if err != nil {
		return programName(cmd)
	}
	return exe
}
