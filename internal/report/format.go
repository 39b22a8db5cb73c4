package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

type Formatter struct{}

func NewFormatter() Formatter {
	return Formatter{}
}

func (f Formatter) Format(report Report, format Format) (string, error) {
	switch format {
	case FormatTable:
		if report.Registry != nil {
			return formatRegistryTable(report), nil
		}
		return formatTable(report), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	default:
		return "", ErrUnknownFormat
	}
}

func formatTable(report Report) string {
	if len(report.Modules) == 0 {
		return formatEmpty(report)
	}

	var buffer bytes.Buffer
	appendSummary(&buffer, report.Summary)

	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "Module\tSize\tParsed\tDependencies")
	for _, module := range report.Modules {
		_, _ = fmt.Fprintln(writer, formatTableRow(report.BasePath, module))
	}
	_ = writer.Flush()
	appendWarnings(&buffer, report)
	return buffer.String()
}

func formatRegistryTable(report Report) string {
	var buffer bytes.Buffer
	if len(report.Registry) == 0 {
		buffer.WriteString("No registry packages found.\n")
		return buffer.String()
	}
	_, _ = fmt.Fprintf(&buffer, "Registry packages: %d\n\n", len(report.Registry))
	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "Package\tEntry")
	for _, entry := range report.Registry {
		_, _ = fmt.Fprintf(writer, "%s\t%s\n", entry.Package, displayPath(report.BasePath, entry.Filename))
	}
	_ = writer.Flush()
	return buffer.String()
}

func appendSummary(buffer *bytes.Buffer, summary *Summary) {
	if summary == nil {
		return
	}
	_, _ = fmt.Fprintf(
		buffer,
		"Summary: %d modules, %d edges, %d excluded, %s\n\n",
		summary.ModuleCount,
		summary.EdgeCount,
		summary.ExcludedCount,
		formatBytes(summary.TotalBytes),
	)
}

func formatTableRow(basePath string, module Module) string {
	parsed := "no"
	if module.Parsed {
		parsed = "yes"
	}
	return strings.Join([]string{
		displayPath(basePath, module.Filename),
		formatBytes(module.Bytes),
		parsed,
		formatDependencies(basePath, module.Dependencies),
	}, "\t")
}

func formatDependencies(basePath string, dependencies []Dependency) string {
	if len(dependencies) == 0 {
		return "-"
	}
	items := make([]string, 0, len(dependencies))
	for _, dep := range dependencies {
		if dep.Filename == "" {
			items = append(items, fmt.Sprintf("%s (%s)", dep.ModuleName, dep.State))
			continue
		}
		items = append(items, fmt.Sprintf("%s -> %s", dep.ModuleName, displayPath(basePath, dep.Filename)))
	}
	return strings.Join(items, ", ")
}

func formatEmpty(report Report) string {
	var buffer bytes.Buffer
	buffer.WriteString("No modules loaded.\n")
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendWarnings(buffer *bytes.Buffer, report Report) {
	if len(report.Warnings) == 0 {
		return
	}
	buffer.WriteString("\nWarnings:\n")
	for _, warning := range report.Warnings {
		buffer.WriteString("- ")
		buffer.WriteString(warning)
		buffer.WriteString("\n")
	}
}

func formatBytes(value int64) string {
	if value == 0 {
		return "0 B"
	}

	floatValue := float64(value)
	unit := "B"
	if floatValue >= 1024 {
		floatValue /= 1024
		unit = "KB"
		if floatValue >= 1024 {
			floatValue /= 1024
			unit = "MB"
		}
	}
	if unit == "B" {
		return fmt.Sprintf("%d B", value)
	}
	return fmt.Sprintf("%.1f %s", floatValue, unit)
}
