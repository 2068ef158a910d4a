package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/plugrec/plugrec/internal/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortPaths sorts file paths in collation order, so listings group
// case-insensitively the way the host's project window does.
func SortPaths(paths []string) {
	collate.New(language.English, collate.IgnoreCase).SortStrings(paths)
}

// PrintPackages formats and prints package statuses as an ASCII table.
func PrintPackages(packages []types.PackageStatus) {
	if len(packages) == 0 {
		fmt.Println("No packages found.")
		return
	}

	fmt.Println(Title("Packages"))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Package", "Version", "Aliases", "Current", "Obsolete")

	for _, p := range packages {
		table.Append(p.Name, formatVersion(p.Version),
			strings.Join(p.Aliases, ", "),
			strconv.Itoa(p.CurrentCount), strconv.Itoa(p.ObsoleteCount))
	}

	table.Render()
}

// PrintGroups formats and prints versioned asset groups as an ASCII table.
func PrintGroups(groups []types.GroupStatus) {
	if len(groups) == 0 {
		fmt.Println("No versioned assets found.")
		return
	}

	fmt.Println(Title("Versioned Assets"))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Asset", "Versions", "Active")

	for _, g := range groups {
		table.Append(g.CanonicalPath, strings.Join(g.Versions, ", "),
			formatVersion(g.ActiveVersion))
	}

	table.Render()
}

// PrintObsolete formats and prints the obsolete-file partition. Referenced
// files show the packages still naming them; those rows need confirmation
// before deletion.
func PrintObsolete(unreferenced []string, referenced map[string][]string) {
	if len(unreferenced) == 0 && len(referenced) == 0 {
		fmt.Println("No obsolete files.")
		return
	}

	fmt.Println(Title("Obsolete Files"))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("File", "Status", "Referenced By")

	paths := make([]string, 0, len(unreferenced))
	paths = append(paths, unreferenced...)
	SortPaths(paths)
	for _, path := range paths {
		table.Append(path, "unreferenced", "-")
	}

	refPaths := make([]string, 0, len(referenced))
	for path := range referenced {
		refPaths = append(refPaths, path)
	}
	SortPaths(refPaths)
	for _, path := range refPaths {
		table.Append(path, Highlight("needs confirmation"),
			strings.Join(referenced[path], ", "))
	}

	table.Render()
}

// formatVersion formats a version for display, using "-" for empty values.
func formatVersion(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
