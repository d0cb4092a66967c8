package config

const (
	defaultLogDir        = "~/.local/share/squeeze/logs"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultEncoder       = "libx265"
	defaultPreset        = "medium"
	defaultCRF           = 28
	defaultTargetCodec   = "hevc"
	defaultContainerExt  = ".mp4"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

func defaultExtensions() []string {
	return []string{
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv",
		".webm", ".m4v", ".mpg", ".mpeg", ".ts", ".3gp",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Transcode: Transcode{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Encoder:       defaultEncoder,
			Preset:        defaultPreset,
			CRF:           defaultCRF,
			TargetCodec:   defaultTargetCodec,
			ContainerExt:  defaultContainerExt,
			Extensions:    defaultExtensions(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
