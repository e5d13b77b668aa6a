// Package summarizer provides summary generation for decode runs.
package summarizer

import "time"

// Summary contains all data collected during a decode run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `yaml:"generated_at"`
	RunID       string    `yaml:"run_id,omitempty"`

	// Input stream
	Input InputInfo `yaml:"input"`

	// Decoder settings
	Settings Settings `yaml:"decoder"`

	// Run results
	Result ResultInfo `yaml:"result"`

	// Decoded frame output
	Output OutputInfo `yaml:"output,omitempty"`
}

// InputInfo describes the decoded stream.
type InputInfo struct {
	Path       string `yaml:"path"`
	Codec      string `yaml:"codec"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fragmented bool   `yaml:"fragmented"`
	Units      int    `yaml:"units"`
	TotalBytes int64  `yaml:"total_bytes"`
}

// Settings contains the decoder configuration.
type Settings struct {
	Platform      string `yaml:"platform"`
	Layers        int    `yaml:"layers"`
	PushTimeoutMs int    `yaml:"push_timeout_ms"`
	PullTimeoutMs int    `yaml:"pull_timeout_ms"`

	// Options lists extra decoder keys as name=value.
	Options []string `yaml:"options,omitempty"`
}

// ResultInfo contains the frame accounting of a run.
type ResultInfo struct {
	Pushed    int   `yaml:"pushed"`
	Pulled    int   `yaml:"pulled"`
	Skipped   int   `yaml:"skipped"`
	Reordered int   `yaml:"reordered"`
	Missing   int   `yaml:"missing"`
	ElapsedMs int64 `yaml:"elapsed_ms"`
}

// OutputInfo describes where decoded slices were written.
type OutputInfo struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
	Saved  int    `yaml:"saved"`
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithRunID sets the run identifier.
func (b *Builder) WithRunID(id string) *Builder {
	b.summary.RunID = id
	return b
}

// WithInput sets stream information.
func (b *Builder) WithInput(input InputInfo) *Builder {
	b.summary.Input = input
	return b
}

// WithSettings sets decoder settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithResult sets frame accounting.
func (b *Builder) WithResult(result ResultInfo) *Builder {
	b.summary.Result = result
	return b
}

// WithOutput sets output information.
func (b *Builder) WithOutput(output OutputInfo) *Builder {
	b.summary.Output = output
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

// FramesPerSecond returns the pull rate of the run, or 0 when nothing was timed.
func (r ResultInfo) FramesPerSecond() float64 {
	if r.ElapsedMs <= 0 {
		return 0
	}
	return float64(r.Pulled) * 1000 / float64(r.ElapsedMs)
}
