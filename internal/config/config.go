package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server  ServerConfig  `toml:"server"`
	Data    DataConfig    `toml:"data"`
	Import  ImportConfig  `toml:"import"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int  `toml:"port"`
	DevMode     bool `toml:"dev_mode"`
	OpenBrowser bool `toml:"open_browser"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir    string `toml:"data_dir"`    // 相对路径基于可执行文件目录
	DBFile     string `toml:"db_file"`     // 数据库文件名，位于 data_dir 下
	InitScript string `toml:"init_script"` // 可选的初始化脚本，位于 data_dir 下
}

// ImportConfig 导入配置
type ImportConfig struct {
	ChunkSize   int    `toml:"chunk_size"`
	Workers     int    `toml:"workers"` // 0 表示 CPU 核数
	TablePrefix string `toml:"table_prefix"`
	DefaultNote string `toml:"default_note"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug/info/warn/error
	Format string `toml:"format"` // json/console
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string // 实际读取的配置文件，未读取时为空
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        20261,
			DevMode:     false,
			OpenBrowser: false,
		},
		Data: DataConfig{
			DataDir:    "data",
			DBFile:     "gradebook.db",
			InitScript: "init.sql",
		},
		Import: ImportConfig{
			ChunkSize:   500,
			Workers:     0,
			TablePrefix: "StudentInfo",
			DefaultNote: "批量导入",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func exeDirOrCwd() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		return "."
	}
	return exeDir
}

// LoadConfigWithInfo 从可执行文件同目录的 config.toml 加载配置并返回元信息
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	return LoadFrom(filepath.Join(exeDirOrCwd(), "config.toml"))
}

// LoadFrom 从指定路径加载配置；文件不存在时使用默认配置
// 环境变量覆盖文件中的值。
func LoadFrom(configPath string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		info.Path = configPath
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, err
		}
	case os.IsNotExist(err):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	applyEnv(config, &info)
	return config, info, nil
}

// applyEnv 环境变量覆盖（用于 E2E / 本地运行）
func applyEnv(config *AppConfig, info *LoadConfigInfo) {
	if v := os.Getenv("GRADEBOOK_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv("GRADEBOOK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("GRADEBOOK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
			info.PortSpecified = true
		}
	}
}

// LoadConfig 从 config.toml 加载配置
// 配置文件位于可执行文件同目录下
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo()
	return config, err
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig) error {
	return SaveTo(filepath.Join(exeDirOrCwd(), "config.toml"), config)
}

// SaveTo 保存配置到指定路径
func SaveTo(configPath string, config *AppConfig) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// DataDir 数据目录的绝对路径；相对路径基于可执行文件目录
func DataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(exeDirOrCwd(), config.Data.DataDir)
}

// EnsureDataDir 确保数据目录及上传子目录存在
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := DataDir(config)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	// 创建子目录
	subdirs := []string{"uploads"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// GetDataPath 获取数据文件路径
func GetDataPath(config *AppConfig, subdir, filename string) string {
	return filepath.Join(DataDir(config), subdir, filename)
}

// DBPath 数据库文件路径
func DBPath(config *AppConfig) string {
	return GetDataPath(config, "", config.Data.DBFile)
}

// InitScriptPath 初始化脚本路径，未配置时为空
func InitScriptPath(config *AppConfig) string {
	if config.Data.InitScript == "" {
		return ""
	}
	if filepath.IsAbs(config.Data.InitScript) {
		return config.Data.InitScript
	}
	return GetDataPath(config, "", config.Data.InitScript)
}
