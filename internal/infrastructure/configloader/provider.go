package configloader

import "github.com/google/wire"

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	Build,
	ProvideBootstrap,
	ProvideServiceMetadata,
	ProvideServerConfig,
	ProvideDataConfig,
	ProvideStorageConfig,
	ProvideAuthConfig,
	ProvideVideoConfig,
	ProvideReaperConfig,
	ProvidePubSubConfig,
	ProvideLogConfig,
)

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil {
		return &Bootstrap{}
	}
	return b.Bootstrap
}

// ProvideServiceMetadata returns the resolved ServiceMetadata from the bundle.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideServerConfig returns the server section.
func ProvideServerConfig(bc *Bootstrap) Server { return bc.Server }

// ProvideDataConfig returns the data section.
func ProvideDataConfig(bc *Bootstrap) Data { return bc.Data }

// ProvideStorageConfig returns the storage section.
func ProvideStorageConfig(bc *Bootstrap) Storage { return bc.Storage }

// ProvideAuthConfig returns the auth section.
func ProvideAuthConfig(bc *Bootstrap) Auth { return bc.Auth }

// ProvideVideoConfig returns the video lifecycle section.
func ProvideVideoConfig(bc *Bootstrap) Video { return bc.Video }

// ProvideReaperConfig returns the reaper section.
func ProvideReaperConfig(bc *Bootstrap) Reaper { return bc.Reaper }

// ProvidePubSubConfig returns the upload notification subscription section.
func ProvidePubSubConfig(bc *Bootstrap) PubSub { return bc.Messaging.PubSub }

// ProvideLogConfig returns the log section.
func ProvideLogConfig(bc *Bootstrap) Log { return bc.Log }
