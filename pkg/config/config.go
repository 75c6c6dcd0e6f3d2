// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
)

const (
	generatedCLIFlagUsage = "generated"

	DevAPIKey    = "devkey"
	DevAPISecret = "secret"

	minSecretLength = 32
)

var (
	ErrKeyFileIncorrectPermission = errors.New("key file others permissions must be set to 0")
	ErrKeysNotSet                 = errors.New("one of key-file, keys or api_key/api_secret must be provided")
	ErrWebHookKeyNotFound         = errors.New("webhook api_key is not one of the configured keys")

	durationType = reflect.TypeOf(time.Duration(0))
)

type Config struct {
	// URL of the LiveKit server, ws(s):// or http(s)://
	URL         string            `yaml:"url,omitempty"`
	APIKey      string            `yaml:"api_key,omitempty"`
	APISecret   string            `yaml:"api_secret,omitempty"`
	KeyFile     string            `yaml:"key_file,omitempty"`
	Keys        map[string]string `yaml:"keys,omitempty"`
	Development bool              `yaml:"development,omitempty"`

	PrometheusPort uint32        `yaml:"prometheus_port,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`

	Room    RoomConfig    `yaml:"room,omitempty"`
	WebHook WebHookConfig `yaml:"webhook,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
	Logging logger.Config `yaml:"logging,omitempty"`
}

type RoomConfig struct {
	Name            string `yaml:"name,omitempty"`
	Identity        string `yaml:"identity,omitempty"`
	AutoCreate      bool   `yaml:"auto_create,omitempty"`
	EmptyTimeout    uint32 `yaml:"empty_timeout,omitempty"`
	MaxParticipants uint32 `yaml:"max_participants,omitempty"`
}

type WebHookConfig struct {
	// APIKey selects the key pair deliveries are signed with, defaults to api_key
	APIKey   string `yaml:"api_key,omitempty"`
	Port     uint32 `yaml:"port,omitempty"`
	Path     string `yaml:"path,omitempty"`
	SkipAuth bool   `yaml:"skip_auth,omitempty"`
	// URLs to forward accepted events to
	URLs        []string     `yaml:"urls,omitempty"`
	CORSOrigins []string     `yaml:"cors_origins,omitempty"`
	FeedSize    int          `yaml:"feed_size,omitempty"`
	Dedupe      DedupeConfig `yaml:"dedupe,omitempty"`
}

type DedupeConfig struct {
	Size int           `yaml:"size,omitempty"`
	TTL  time.Duration `yaml:"ttl,omitempty"`
}

type RedisConfig struct {
	Address  string `yaml:"address,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

func (r RedisConfig) IsConfigured() bool {
	return r.Address != ""
}

var DefaultConfig = Config{
	URL:          "ws://localhost:7880",
	PollInterval: 10 * time.Second,
	Room: RoomConfig{
		Name:         "sdk-room",
		Identity:     "sdk-example",
		EmptyTimeout: 5 * 60,
	},
	WebHook: WebHookConfig{
		Port:     8080,
		Path:     "/webhook",
		FeedSize: 100,
		Dedupe: DedupeConfig{
			Size: 1000,
			TTL:  10 * time.Minute,
		},
	},
	Keys: map[string]string{},
}

func NewConfig(confString string, strictMode bool, c *cli.Context, baseFlags []cli.Flag) (*Config, error) {
	// start with defaults
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	err = yaml.Unmarshal(marshalled, &conf)
	if err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		if err := conf.updateFromCLI(c, baseFlags); err != nil {
			return nil, err
		}
	}

	// expand env vars in filenames
	file, err := homedir.Expand(os.ExpandEnv(conf.KeyFile))
	if err != nil {
		return nil, err
	}
	conf.KeyFile = file

	if conf.Logging.Level == "" && conf.Development {
		conf.Logging.Level = "debug"
	}
	if conf.Development {
		logger.Infow("starting in development mode")
	}

	return &conf, nil
}

// GetConfigString prefers an inline config body over the config file.
func GetConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}

type configNode struct {
	TypeNode  reflect.Value
	TagPrefix string
}

func (conf *Config) ToCLIFlagNames(existingFlags []cli.Flag) map[string]reflect.Value {
	existingFlagNames := map[string]bool{}
	for _, flag := range existingFlags {
		for _, flagName := range flag.Names() {
			existingFlagNames[flagName] = true
		}
	}

	flagNames := map[string]reflect.Value{}
	var currNode configNode
	nodes := []configNode{{reflect.ValueOf(conf).Elem(), ""}}
	for len(nodes) > 0 {
		currNode, nodes = nodes[0], nodes[1:]
		for i := 0; i < currNode.TypeNode.NumField(); i++ {
			// inspect yaml tag from struct field to get path
			field := currNode.TypeNode.Type().Field(i)
			yamlTag := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if yamlTag == "" || yamlTag == "-" {
				continue
			}
			yamlPath := yamlTag
			if currNode.TagPrefix != "" {
				yamlPath = fmt.Sprintf("%s.%s", currNode.TagPrefix, yamlTag)
			}
			if existingFlagNames[yamlPath] {
				continue
			}

			// map flag name to value
			value := currNode.TypeNode.Field(i)
			if value.Kind() == reflect.Struct {
				nodes = append(nodes, configNode{value, yamlPath})
			} else {
				flagNames[yamlPath] = value
			}
		}
	}

	return flagNames
}

// ValidateKeys resolves the key pairs the process may use. Keys from key_file
// replace inline keys, api_key/api_secret are added to them, and the SDK
// credentials default to the only configured pair.
func (conf *Config) ValidateKeys() error {
	// prefer keyfile if set
	if conf.KeyFile != "" {
		var otherFilter os.FileMode = 0o007
		if st, err := os.Stat(conf.KeyFile); err != nil {
			return err
		} else if st.Mode().Perm()&otherFilter != 0o000 {
			return ErrKeyFileIncorrectPermission
		}
		f, err := os.Open(conf.KeyFile)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		provider, err := auth.NewFileBasedKeyProvider(f)
		if err != nil {
			return err
		}
		conf.Keys = make(map[string]string, provider.NumKeys())
		for _, key := range provider.Keys() {
			conf.Keys[key] = provider.GetSecret(key)
		}
	}

	if conf.Keys == nil {
		conf.Keys = map[string]string{}
	}
	if conf.APIKey != "" && conf.APISecret != "" {
		conf.Keys[conf.APIKey] = conf.APISecret
	}

	if len(conf.Keys) == 0 && conf.Development {
		logger.Infow("no keys provided, using placeholder keys",
			"API Key", DevAPIKey,
			"API Secret", DevAPISecret,
		)
		conf.Keys[DevAPIKey] = DevAPISecret
	}

	if len(conf.Keys) == 0 {
		return ErrKeysNotSet
	}

	switch {
	case conf.APIKey == "" && len(conf.Keys) == 1:
		for key, secret := range conf.Keys {
			conf.APIKey, conf.APISecret = key, secret
		}
	case conf.APIKey == "":
		return errors.Wrap(ErrKeysNotSet, "api_key must select one of the configured keys")
	case conf.APISecret == "":
		conf.APISecret = conf.Keys[conf.APIKey]
		if conf.APISecret == "" {
			return errors.Wrapf(ErrKeysNotSet, "no secret for api key %s", conf.APIKey)
		}
	}

	if conf.WebHook.APIKey == "" {
		conf.WebHook.APIKey = conf.APIKey
	} else if conf.Keys[conf.WebHook.APIKey] == "" {
		return errors.Wrapf(ErrWebHookKeyNotFound, "api key %s", conf.WebHook.APIKey)
	}

	if !conf.Development {
		for _, key := range conf.sortedKeys() {
			if len(conf.Keys[key]) < minSecretLength {
				logger.Errorw("secret is too short, should be at least 32 characters for security", nil, "apiKey", key)
			}
		}
	}
	return nil
}

// KeyProvider exposes the validated keys to token verification.
func (conf *Config) KeyProvider() auth.KeyProvider {
	return auth.NewFileBasedKeyProviderFromMap(conf.Keys)
}

// WebHookSecret returns the secret paired with webhook.api_key.
func (conf *Config) WebHookSecret() string {
	return conf.Keys[conf.WebHook.APIKey]
}

func (conf *Config) sortedKeys() []string {
	keys := make([]string, 0, len(conf.Keys))
	for k := range conf.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func GenerateCLIFlags(existingFlags []cli.Flag, hidden bool) ([]cli.Flag, error) {
	blankConfig := &Config{}
	flags := make([]cli.Flag, 0)
	for name, value := range blankConfig.ToCLIFlagNames(existingFlags) {
		kind := value.Kind()
		envVar := fmt.Sprintf("LIVEKIT_%s", strings.ToUpper(strings.Replace(name, ".", "_", -1)))

		var flag cli.Flag
		switch {
		case value.Type() == durationType:
			flag = &cli.DurationFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Bool:
			flag = &cli.BoolFlag{
				Name:   name,
				Usage:  generatedCLIFlagUsage,
				Hidden: hidden,
			}
		case kind == reflect.String:
			flag = &cli.StringFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			flag = &cli.Int64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			flag = &cli.Uint64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Slice && value.Type().Elem().Kind() == reflect.String:
			flag = &cli.StringSliceFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Map:
			// set through --keys
			continue
		default:
			return flags, fmt.Errorf("cli flag generation unsupported for config type: %s is a %s", name, kind.String())
		}

		flags = append(flags, flag)
	}

	// map iteration order is random, keep help output stable
	sort.Slice(flags, func(i, j int) bool {
		return flags[i].Names()[0] < flags[j].Names()[0]
	})
	return flags, nil
}

func (conf *Config) updateFromCLI(c *cli.Context, baseFlags []cli.Flag) error {
	generatedFlagNames := conf.ToCLIFlagNames(baseFlags)
	for _, flagName := range c.FlagNames() {
		if !c.IsSet(flagName) {
			continue
		}

		configValue, ok := generatedFlagNames[flagName]
		if !ok {
			continue
		}

		kind := configValue.Kind()
		switch {
		case configValue.Type() == durationType:
			configValue.SetInt(int64(c.Duration(flagName)))
		case kind == reflect.Bool:
			configValue.SetBool(c.Bool(flagName))
		case kind == reflect.String:
			configValue.SetString(c.String(flagName))
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			configValue.SetInt(c.Int64(flagName))
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			configValue.SetUint(c.Uint64(flagName))
		case kind == reflect.Slice:
			configValue.Set(reflect.ValueOf(c.StringSlice(flagName)))
		default:
			return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, kind.String())
		}
	}

	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
	}
	if c.IsSet("key-file") {
		conf.KeyFile = c.String("key-file")
	}
	if c.IsSet("keys") {
		if err := conf.unmarshalKeys(c.String("keys")); err != nil {
			return errors.New("Could not parse keys, it needs to be exactly, \"key: secret\", including the space")
		}
	}
	if c.IsSet("redis-host") {
		conf.Redis.Address = c.String("redis-host")
	}
	if c.IsSet("redis-password") {
		conf.Redis.Password = c.String("redis-password")
	}
	return nil
}

func (conf *Config) unmarshalKeys(keys string) error {
	temp := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(keys), temp); err != nil {
		return err
	}

	conf.Keys = make(map[string]string, len(temp))

	for key, val := range temp {
		if secret, ok := val.(string); ok {
			conf.Keys[key] = secret
		}
	}
	return nil
}

func InitLoggerFromConfig(config logger.Config) {
	logger.InitFromConfig(config, "livekit-sdk")
}
