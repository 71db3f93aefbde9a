package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Export   ExportConfig   `mapstructure:"export"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	LogLevel string         `mapstructure:"log_level"`
}

type PathsConfig struct {
	OutDir         string `mapstructure:"out_dir"`
	TokensFile     string `mapstructure:"tokens_file"`
	HparamsPath    string `mapstructure:"hparams_path"`
	CheckpointPath string `mapstructure:"checkpoint_path"`
	LanguagesFile  string `mapstructure:"languages_file"`
}

type ExportConfig struct {
	Language  string `mapstructure:"language"`
	Variant   string `mapstructure:"variant"`
	Opset     int    `mapstructure:"opset"`
	SeqLen    int    `mapstructure:"seq_len"`
	BatchSize int    `mapstructure:"batch_size"`
	SpeakerID int    `mapstructure:"speaker_id"`
	TokenHigh int    `mapstructure:"token_high"`
	Seed      int64  `mapstructure:"seed"`
	Device    string `mapstructure:"device"`
	PythonBin string `mapstructure:"python_bin"`
	Script    string `mapstructure:"script"`
}

type MetadataConfig struct {
	ModelType   string `mapstructure:"model_type"`
	Comment     string `mapstructure:"comment"`
	Version     int    `mapstructure:"version"`
	URL         string `mapstructure:"url"`
	License     string `mapstructure:"license"`
	Description string `mapstructure:"description"`
	Jieba       bool   `mapstructure:"jieba"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			OutDir:     ".",
			TokensFile: "tokens.txt",
		},
		Export: ExportConfig{
			Language:  "KR",
			Variant:   VariantDefault,
			Opset:     13,
			SeqLen:    60,
			BatchSize: 1,
			SpeakerID: 0,
			TokenHigh: 10,
			Seed:      0,
			Device:    "cpu",
		},
		Metadata: MetadataConfig{
			ModelType:   "melo-vits",
			Version:     2,
			URL:         "https://github.com/myshell-ai/MeloTTS",
			License:     "MIT license",
			Description: "MeloTTS is a high-quality multi-lingual text-to-speech library by MyShell.ai",
			Jieba:       true,
		},
		Runtime: RuntimeConfig{
			ORTAPIVersion: 23,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-out-dir", defaults.Paths.OutDir, "Directory for the exported artifact")
	fs.String("paths-tokens-file", defaults.Paths.TokensFile, "Vocabulary output file (relative paths resolve under --paths-out-dir)")
	fs.String("paths-hparams-path", defaults.Paths.HparamsPath, "Local MeloTTS config.json (read through the Python helper when empty)")
	fs.String("paths-checkpoint-path", defaults.Paths.CheckpointPath, "MeloTTS checkpoint (.pth); downloaded by MeloTTS when empty")
	fs.String("paths-languages-file", defaults.Paths.LanguagesFile, "Optional YAML file replacing the language id/tone tables")
	fs.String("language", defaults.Export.Language, "Language key (KR, EN, ZH, JP, ...)")
	fs.String("variant", defaults.Export.Variant, "Export variant: default|ja-bert")
	fs.Int("opset", defaults.Export.Opset, "ONNX opset version")
	fs.Int("seq-len", defaults.Export.SeqLen, "Sequence length of the dummy export inputs")
	fs.Int("batch-size", defaults.Export.BatchSize, "Batch size of the dummy export inputs")
	fs.Int("speaker-id", defaults.Export.SpeakerID, "Default speaker id")
	fs.Int("token-high", defaults.Export.TokenHigh, "Exclusive upper bound for dummy token ids")
	fs.Int64("seed", defaults.Export.Seed, "Seed for dummy tensors (0 = time based)")
	fs.String("device", defaults.Export.Device, "Torch device used by the Python helper")
	fs.String("python-bin", defaults.Export.PythonBin, "Python interpreter for the export helper (auto-detected when empty)")
	fs.String("script", defaults.Export.Script, "Path to the export helper script")
	fs.String("metadata-model-type", defaults.Metadata.ModelType, "model_type metadata value")
	fs.String("metadata-comment", defaults.Metadata.Comment, "comment metadata value (derived from the language when empty)")
	fs.Int("metadata-version", defaults.Metadata.Version, "version metadata value")
	fs.String("metadata-url", defaults.Metadata.URL, "url metadata value")
	fs.String("metadata-license", defaults.Metadata.License, "license metadata value")
	fs.String("metadata-description", defaults.Metadata.Description, "description metadata value")
	fs.Bool("metadata-jieba", defaults.Metadata.Jieba, "Request the lexicon frontend in the downstream loader")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Int("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	var fs *pflag.FlagSet
	if opts.Cmd != nil {
		fs = opts.Cmd.Flags()
		if err := bindFlags(v, fs); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("MELOEXPORT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "MELOEXPORT_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("meloexport")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if fs != nil && fs.Changed("ort-lib") {
		lib, err := fs.GetString("ort-lib")
		if err != nil {
			return Config{}, fmt.Errorf("read --ort-lib: %w", err)
		}
		cfg.Runtime.ORTLibraryPath = lib
	}

	variant, err := NormalizeVariant(cfg.Export.Variant)
	if err != nil {
		return Config{}, err
	}
	cfg.Export.Variant = variant

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.out_dir", c.Paths.OutDir)
	v.SetDefault("paths.tokens_file", c.Paths.TokensFile)
	v.SetDefault("paths.hparams_path", c.Paths.HparamsPath)
	v.SetDefault("paths.checkpoint_path", c.Paths.CheckpointPath)
	v.SetDefault("paths.languages_file", c.Paths.LanguagesFile)
	v.SetDefault("export.language", c.Export.Language)
	v.SetDefault("export.variant", c.Export.Variant)
	v.SetDefault("export.opset", c.Export.Opset)
	v.SetDefault("export.seq_len", c.Export.SeqLen)
	v.SetDefault("export.batch_size", c.Export.BatchSize)
	v.SetDefault("export.speaker_id", c.Export.SpeakerID)
	v.SetDefault("export.token_high", c.Export.TokenHigh)
	v.SetDefault("export.seed", c.Export.Seed)
	v.SetDefault("export.device", c.Export.Device)
	v.SetDefault("export.python_bin", c.Export.PythonBin)
	v.SetDefault("export.script", c.Export.Script)
	v.SetDefault("metadata.model_type", c.Metadata.ModelType)
	v.SetDefault("metadata.comment", c.Metadata.Comment)
	v.SetDefault("metadata.version", c.Metadata.Version)
	v.SetDefault("metadata.url", c.Metadata.URL)
	v.SetDefault("metadata.license", c.Metadata.License)
	v.SetDefault("metadata.description", c.Metadata.Description)
	v.SetDefault("metadata.jieba", c.Metadata.Jieba)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("log_level", c.LogLevel)
}

// flagKeys maps nested config keys to the flag names registered by RegisterFlags.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"paths.out_dir", "paths-out-dir"},
	{"paths.tokens_file", "paths-tokens-file"},
	{"paths.hparams_path", "paths-hparams-path"},
	{"paths.checkpoint_path", "paths-checkpoint-path"},
	{"paths.languages_file", "paths-languages-file"},
	{"export.language", "language"},
	{"export.variant", "variant"},
	{"export.opset", "opset"},
	{"export.seq_len", "seq-len"},
	{"export.batch_size", "batch-size"},
	{"export.speaker_id", "speaker-id"},
	{"export.token_high", "token-high"},
	{"export.seed", "seed"},
	{"export.device", "device"},
	{"export.python_bin", "python-bin"},
	{"export.script", "script"},
	{"metadata.model_type", "metadata-model-type"},
	{"metadata.comment", "metadata-comment"},
	{"metadata.version", "metadata-version"},
	{"metadata.url", "metadata-url"},
	{"metadata.license", "metadata-license"},
	{"metadata.description", "metadata-description"},
	{"metadata.jieba", "metadata-jieba"},
	{"runtime.ort_library_path", "runtime-ort-library-path"},
	{"runtime.ort_version", "runtime-ort-version"},
	{"runtime.ort_api_version", "runtime-ort-api-version"},
	{"log_level", "log-level"},
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}
	return nil
}
