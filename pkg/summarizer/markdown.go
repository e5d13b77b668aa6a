package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate headings and labels.
func WithTranslator(translate func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = translate
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a formatter with untranslated labels.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Decode Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Input"))
	f.row(&b, "File", s.Input.Path)
	f.row(&b, "Codec", s.Input.Codec)
	f.row(&b, "Video Size", fmt.Sprintf("%dx%d", s.Input.Width, s.Input.Height))
	if s.Input.Fragmented {
		f.row(&b, "Container", t("Fragmented MP4"))
	} else {
		f.row(&b, "Container", t("Progressive MP4"))
	}
	f.row(&b, "Access Units", fmt.Sprintf("%d", s.Input.Units))
	f.row(&b, "Stream Size", formatBytes(s.Input.TotalBytes))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Decoder"))
	f.row(&b, "Platform", s.Settings.Platform)
	if s.RunID != "" {
		f.row(&b, "Run ID", s.RunID)
	}
	f.row(&b, "Texture Layers", fmt.Sprintf("%d", s.Settings.Layers))
	f.row(&b, "Push Timeout", fmt.Sprintf("%d ms", s.Settings.PushTimeoutMs))
	f.row(&b, "Pull Timeout", fmt.Sprintf("%d ms", s.Settings.PullTimeoutMs))
	if len(s.Settings.Options) > 0 {
		f.row(&b, "Options", strings.Join(s.Settings.Options, ", "))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	f.row(&b, "Frames Pushed", fmt.Sprintf("%d", s.Result.Pushed))
	f.row(&b, "Frames Decoded", fmt.Sprintf("%d", s.Result.Pulled))
	if s.Result.Skipped > 0 {
		f.row(&b, "Skipped (too large)", fmt.Sprintf("%d", s.Result.Skipped))
	}
	f.row(&b, "Reordered", fmt.Sprintf("%d", s.Result.Reordered))
	if s.Result.Missing > 0 {
		f.row(&b, "Missing", fmt.Sprintf("%d", s.Result.Missing))
	}
	f.row(&b, "Elapsed", fmt.Sprintf("%d ms", s.Result.ElapsedMs))
	if fps := s.Result.FramesPerSecond(); fps > 0 {
		f.row(&b, "Throughput", fmt.Sprintf("%.1f fps", fps))
	}
	b.WriteString("\n")

	if s.Output.Dir != "" {
		fmt.Fprintf(&b, "## %s\n\n", t("Output"))
		f.row(&b, "Directory", s.Output.Dir)
		f.row(&b, "Format", s.Output.Format)
		f.row(&b, "Frames Saved", fmt.Sprintf("%d", s.Output.Saved))
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if f.version != "" {
		footer += fmt.Sprintf(" (texdecode %s)", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "- **%s**: %s\n", f.translate(label), value)
}

// formatBytes renders a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
