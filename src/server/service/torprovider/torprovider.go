// SPDX-License-Identifier: MIT
// Package torprovider adapts config.TorConfig into the torloader.ConfigProvider
// contract: it builds a torconfig.TorConfig from the daemon's static settings
// and renders it to tor's command-line argument form, since the loader starts
// tor with everything passed as flags rather than a populated torrc file.
package torprovider

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/apimgr/torsentry/src/config"
	"github.com/apimgr/torsentry/src/torconfig"
	"github.com/apimgr/torsentry/src/torloader"
)

// DefaultPortAvailable probes a TCP address by attempting to bind it.
func DefaultPortAvailable(network, address string) bool {
	ln, err := net.Listen(network, address)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Provider implements torloader.ConfigProvider over a static config.TorConfig.
type Provider struct {
	cfg config.TorConfig
}

// New returns a Provider for cfg.
func New(cfg config.TorConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Provide builds the ValidatedTorConfig the loader needs to launch or
// re-attach to tor: the typed settings, their command-line rendering, and
// the control-port/cookie file paths the loader reads back.
func (p *Provider) Provide(portAvailable torloader.PortAvailable) (torloader.ValidatedTorConfig, error) {
	dataDir := p.cfg.DataDir
	if dataDir == "" {
		return torloader.ValidatedTorConfig{}, fmt.Errorf("torprovider: data directory is required")
	}

	b := torconfig.NewBuilder()

	dataDirSetting, err := lineSetting(torconfig.DataDirectory, dataDir)
	if err != nil {
		return torloader.ValidatedTorConfig{}, err
	}
	b.Put(dataDirSetting)

	socksArg := p.cfg.SocksPort
	if socksArg == "" {
		socksArg = "9050"
	}
	socksSetting, err := portSetting(torconfig.SocksPort, socksArg, portAvailable)
	if err != nil {
		return torloader.ValidatedTorConfig{}, err
	}
	b.Put(socksSetting)

	controlArg := p.cfg.ControlPort
	if controlArg == "" {
		controlArg = "9051"
	}
	controlSetting, err := portSetting(torconfig.ControlPort, controlArg, portAvailable)
	if err != nil {
		return torloader.ValidatedTorConfig{}, err
	}
	b.Put(controlSetting)

	controlPortFile := filepath.Join(dataDir, "control-port")
	cpfSetting, err := lineSetting(torconfig.ControlPortWriteToFile, controlPortFile)
	if err != nil {
		return torloader.ValidatedTorConfig{}, err
	}
	b.Put(cpfSetting)

	var cookieFile string
	if p.cfg.CookieAuth {
		cookieOnSetting, err := lineSetting(torconfig.CookieAuthentication, "1")
		if err != nil {
			return torloader.ValidatedTorConfig{}, err
		}
		b.Put(cookieOnSetting)

		cookieFile = filepath.Join(dataDir, "control_auth_cookie")
		cafSetting, err := lineSetting(torconfig.CookieAuthFile, cookieFile)
		if err != nil {
			return torloader.ValidatedTorConfig{}, err
		}
		b.Put(cafSetting)
	}

	for _, line := range p.cfg.ExtraLines {
		item, err := torconfig.ParseLineItem(line)
		if err != nil {
			return torloader.ValidatedTorConfig{}, fmt.Errorf("torprovider: extra line %q: %w", line, err)
		}
		setting, err := torconfig.NewSetting(item)
		if err != nil {
			return torloader.ValidatedTorConfig{}, err
		}
		b.PutIfAbsent(setting)
	}

	built := b.Build()

	args := []string{
		"-f", filepath.Join(dataDir, "torrc"),
		"--defaults-torrc", filepath.Join(dataDir, "torrc-defaults"),
	}
	for _, s := range built.Settings() {
		for _, item := range s.Items() {
			args = append(args, "--"+item.Keyword.Name, item.Argument)
			args = append(args, item.Optionals...)
		}
	}

	return torloader.ValidatedTorConfig{
		Config:          built,
		Args:            args,
		ControlPortFile: controlPortFile,
		CookieAuthFile:  cookieFile,
	}, nil
}

func lineSetting(kw torconfig.Keyword, argument string) (torconfig.Setting, error) {
	item, err := torconfig.NewLineItem(kw, argument)
	if err != nil {
		return torconfig.Setting{}, err
	}
	return torconfig.NewSetting(item)
}

// portSetting builds a port setting, reassigning it to "auto" when the
// configured port is already in use and the caller allows reassignment.
func portSetting(kw torconfig.Keyword, portArg string, portAvailable torloader.PortAvailable) (torconfig.Setting, error) {
	setting, err := lineSetting(kw, portArg)
	if err != nil {
		return torconfig.Setting{}, err
	}
	if portAvailable == nil || portArg == "auto" || portArg == "0" {
		return setting, nil
	}
	if portAvailable("tcp", net.JoinHostPort("127.0.0.1", portArg)) {
		return setting, nil
	}
	setting = torconfig.WithExtra(setting, torconfig.ExtraAllowReassign, true)
	if reassigned, ok := setting.ReassignToAuto(); ok {
		return reassigned, nil
	}
	return setting, nil
}
