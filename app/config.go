package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

type InitCfg struct{}

// Config is the command line and config file of the relay binary.
type Config struct {
	InitCfgCmd  *InitCfg `arg:"subcommand:initcfg" json:"-" help:"write the current flags to the config file and exit"`
	ConfigFile  string   `arg:"-C,--config" json:"-" help:"JSON config file; values it sets replace the flags, and initcfg writes the flags to it"`
	Host        string   `arg:"-H,--host" default:"0.0.0.0" json:"host" validate:"required" help:"network address to listen on"`
	Port        int      `arg:"-p,--port" default:"8080" json:"port" validate:"min=0,max=65535" help:"port of a single relay"`
	Relays      int      `arg:"-r,--relays" default:"1" json:"relays" validate:"min=1,max=1000" help:"number of relays to start"`
	StartPort   int      `arg:"--start-port" default:"8080" json:"start_port" validate:"min=0,max=65535" help:"first port when starting more than one relay"`
	Preload     []string `arg:"--preload,separate" json:"preload" validate:"dive,file" help:"event files to seed every relay with (.json, .yaml, .yml or .jsonl; can use flag repeatedly)"`
	ExportFile  string   `arg:"--export" json:"export" help:"write the events of the first relay to this file on shutdown"`
	LogLevel    string   `arg:"--loglevel" default:"info" json:"log_level" validate:"oneof=off fatal error warn info debug trace" help:"set log level [off,fatal,error,warn,info,debug,trace] (can also use GODEBUG environment variable)"`
	LogFile     string   `arg:"--logfile" default:"relay.log" json:"log_file" help:"file that receives a copy of the log; empty disables"`
	Name        string   `arg:"-n,--name" default:"mock relay" json:"name" help:"name of relay for NIP-11"`
	Description string   `arg:"-d,--description" default:"in-memory nostr relay for testing" json:"description" help:"description of relay for NIP-11"`
	// MaxMessageSize bounds inbound websocket messages in bytes.
	MaxMessageSize int `arg:"--maxmessage" json:"max_message_size" validate:"min=0" help:"largest inbound message in bytes (0 for the default)"`
	// MaxConnections bounds concurrent connections per relay.
	MaxConnections int  `arg:"--maxconns" json:"max_connections" validate:"min=0" help:"concurrent connections per relay (0 for no limit)"`
	AuthOnConnect  bool `arg:"--auth" json:"auth_on_connect" help:"send an AUTH challenge on connect (replies are acknowledged, never checked)"`
	QR             bool `arg:"--qr" json:"-" help:"print the relay URLs as QR codes for connecting devices"`
}

var validate = validator.New()

// Validate checks the field constraints in the validate tags, and that the
// run of ports starting at StartPort fits below 65536.
func (c *Config) Validate() (err error) {
	if err = validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid configuration: %s fails %s",
				verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Relays > 1 && c.StartPort > 0 && c.StartPort+c.Relays-1 > 65535 {
		return fmt.Errorf("invalid configuration: %d relays from port %d "+
			"run past 65535", c.Relays, c.StartPort)
	}
	return
}

// Ports returns the ports the relays should listen on: Port for a single
// relay, a contiguous run from StartPort otherwise. A StartPort of 0 gives
// every relay a free port.
func (c *Config) Ports() (ports []int) {
	if c.Relays <= 1 {
		return []int{c.Port}
	}
	for i := 0; i < c.Relays; i++ {
		if c.StartPort == 0 {
			ports = append(ports, 0)
			continue
		}
		ports = append(ports, c.StartPort+i)
	}
	return
}

func (c *Config) Save(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot save nil relay config")
		log.E.Ln(err)
		return
	}
	var b []byte
	if b, err = json.MarshalIndent(c, "", "    "); chk.E(err) {
		return
	}
	if err = os.WriteFile(filename, b, 0600); chk.E(err) {
		return
	}
	return
}

func (c *Config) Load(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot load into nil config")
		chk.E(err)
		return
	}
	var b []byte
	if b, err = os.ReadFile(filename); chk.E(err) {
		return
	}
	if err = json.Unmarshal(b, c); chk.E(err) {
		return
	}
	return
}
