// Package option collects the functional options accepted by New and
// Open. It merges what used to be two separate option trees in the
// teacher -- a CreateOptions/CreateOption pair and an OpenOptions/
// OpenOption pair -- into a single CreateOptions/OpenOptions split that
// keeps both names, since New and Open genuinely take different
// parameters (New chooses what to build; Open chooses how to interpret
// what is already on disk).
package option

import (
	"github.com/voliso/voliso/pkg/logging"
)

// ProgressCallback reports per-file progress while a Write/WriteFp copies
// payload bytes into the output image: the file's name, cumulative bytes
// copied, the total payload bytes, the 1-based index of the current
// file, and the total file count.
type ProgressCallback func(
	currentFilename string,
	bytesTransferred int64,
	totalBytes int64,
	currentFileNumber int,
	totalFileCount int,
)

// CreateOptions configures New.
type CreateOptions struct {
	JolietEnabled    bool
	RockRidgeEnabled bool
	UDFEnabled       bool
	VolumeIdentifier string
	PublisherID      string
	ApplicationID    string
	SystemID         string
	AlwaysConsistent bool
	Logger           *logging.Logger
	ProgressCallback ProgressCallback
}

// CreateOption modifies CreateOptions.
type CreateOption func(*CreateOptions)

// DefaultCreateOptions leaves every optional namespace disabled: a bare
// New() produces plain ISO9660 only, so AddFp with just an ISO path and
// no RRName never fails because Rock Ridge was silently turned on.
func DefaultCreateOptions() CreateOptions {
	return CreateOptions{
		JolietEnabled:    false,
		RockRidgeEnabled: false,
		UDFEnabled:       false,
		VolumeIdentifier: "VOLISO",
		Logger:           logging.DefaultLogger(),
	}
}

func WithJoliet(enabled bool) CreateOption {
	return func(o *CreateOptions) { o.JolietEnabled = enabled }
}

func WithRockRidge(enabled bool) CreateOption {
	return func(o *CreateOptions) { o.RockRidgeEnabled = enabled }
}

func WithUDF(enabled bool) CreateOption {
	return func(o *CreateOptions) { o.UDFEnabled = enabled }
}

func WithVolumeIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.VolumeIdentifier = id }
}

func WithPublisherIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.PublisherID = id }
}

func WithApplicationIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.ApplicationID = id }
}

func WithSystemIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.SystemID = id }
}

// WithAlwaysConsistent makes every mutating call reconcile extents
// immediately, instead of deferring to an explicit ForceConsistency or
// the next Write/WriteFp call. Slower per call, convenient for small
// interactive sessions.
func WithAlwaysConsistent(enabled bool) CreateOption {
	return func(o *CreateOptions) { o.AlwaysConsistent = enabled }
}

func WithCreateLogger(logger *logging.Logger) CreateOption {
	return func(o *CreateOptions) { o.Logger = logger }
}

func WithCreateProgress(callback ProgressCallback) CreateOption {
	return func(o *CreateOptions) { o.ProgressCallback = callback }
}

// OpenOptions configures Open/OpenFP.
type OpenOptions struct {
	ParseOnOpen      bool
	StripVersionInfo bool
	RockRidgeEnabled bool
	ElToritoEnabled  bool
	UDFEnabled       bool
	PreferJoliet     bool
	BootFileLocation string
	AlwaysConsistent bool
	Logger           *logging.Logger
	ProgressCallback ProgressCallback
}

// OpenOption modifies OpenOptions.
type OpenOption func(*OpenOptions)

// DefaultOpenOptions enables every extension parser, since Open needs
// to recognize whatever a source image actually contains rather than
// guess in advance. Version suffixes are preserved by default so a
// parse-write round trip keeps ";N" identifiers intact; callers that
// want bare names opt in via WithStripVersionInfo.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		ParseOnOpen:      true,
		StripVersionInfo: false,
		RockRidgeEnabled: true,
		ElToritoEnabled:  true,
		UDFEnabled:       true,
		BootFileLocation: "[BOOT]",
		Logger:           logging.DefaultLogger(),
	}
}

func WithParseOnOpen(parseOnOpen bool) OpenOption {
	return func(o *OpenOptions) { o.ParseOnOpen = parseOnOpen }
}

func WithStripVersionInfo(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.StripVersionInfo = enabled }
}

func WithRockRidgeEnabled(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.RockRidgeEnabled = enabled }
}

func WithElToritoEnabled(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.ElToritoEnabled = enabled }
}

func WithUDFEnabled(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.UDFEnabled = enabled }
}

// WithPreferJoliet makes the Joliet SVD's identity fields (volume,
// publisher, application, system identifiers) take precedence over the
// PVD's when both descriptors are present, so they survive into the next
// write with their full Unicode names rather than the PVD's d-character
// mangling.
func WithPreferJoliet(preferJoliet bool) OpenOption {
	return func(o *OpenOptions) { o.PreferJoliet = preferJoliet }
}

// WithBootFileLocation sets the directory ExtractBootImages writes El
// Torito boot images into when its caller does not name one explicitly.
func WithBootFileLocation(location string) OpenOption {
	return func(o *OpenOptions) { o.BootFileLocation = location }
}

func WithAlwaysConsistentOpen(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.AlwaysConsistent = enabled }
}

func WithLogger(logger *logging.Logger) OpenOption {
	return func(o *OpenOptions) { o.Logger = logger }
}

func WithProgress(callback ProgressCallback) OpenOption {
	return func(o *OpenOptions) { o.ProgressCallback = callback }
}
