// SPDX-License-Identifier: MIT
package torconfig

import "testing"

func TestPortDisableScenario(t *testing.T) {
	enabled, err := NewLineItem(SocksPort, "9050")
	if err != nil {
		t.Fatalf("NewLineItem returned error: %v", err)
	}
	disabled, err := NewLineItem(SocksPort, "0")
	if err != nil {
		t.Fatalf("NewLineItem returned error: %v", err)
	}
	enabledSetting, _ := NewSetting(enabled)
	disabledSetting, _ := NewSetting(disabled)

	cfg := NewBuilder().Put(enabledSetting).Put(disabledSetting).Build()

	settings := cfg.Settings()
	if len(settings) != 1 {
		t.Fatalf("expected exactly 1 setting after the disable sweep, got %d", len(settings))
	}
	if settings[0].Root().Argument != "0" {
		t.Fatalf("expected the surviving setting to be the disabled one, got argument %q", settings[0].Root().Argument)
	}
}

func TestSettingDedupKeepsOnlyOne(t *testing.T) {
	item, _ := NewLineItem(ControlPort, "9051")
	s1, _ := NewSetting(item)
	s2, _ := NewSetting(item)

	cfg := NewBuilder().Put(s1).Put(s2).Build()
	if len(cfg.Settings()) != 1 {
		t.Fatalf("expected Put(s) followed by Put(s) to collapse to one setting, got %d", len(cfg.Settings()))
	}
}

func TestPutIfAbsentDoesNotOverwrite(t *testing.T) {
	first, _ := NewLineItem(SocksPort, "9050")
	second, _ := NewLineItem(SocksPort, "9050", "IsolateDestAddr")
	s1, _ := NewSetting(first)
	s2, _ := NewSetting(second)

	b := NewBuilder().Put(s1)
	b.PutIfAbsent(s2)
	cfg := b.Build()

	settings := cfg.Settings()
	if len(settings) != 1 {
		t.Fatalf("expected 1 setting, got %d", len(settings))
	}
	if len(settings[0].Root().Optionals) != 0 {
		t.Fatalf("expected PutIfAbsent to be a no-op on collision, got optionals %v", settings[0].Root().Optionals)
	}
}

func TestInheritedDisabledPortDroppedByExplicitOverride(t *testing.T) {
	disabled, _ := NewLineItem(SocksPort, "0")
	disabledSetting, _ := NewSetting(disabled)
	base := NewBuilder().Put(disabledSetting).Build()

	explicit, _ := NewLineItem(SocksPort, "9150")
	explicitSetting, _ := NewSetting(explicit)

	cfg := NewBuilder().InheritFrom(base).Put(explicitSetting).Build()
	settings := cfg.Settings()
	if len(settings) != 1 || settings[0].Root().Argument != "9150" {
		t.Fatalf("expected the explicit override to win over the inherited disable, got %v", settings)
	}
}

func TestInheritedDisabledPortSurvivesWithoutOverride(t *testing.T) {
	disabled, _ := NewLineItem(SocksPort, "0")
	disabledSetting, _ := NewSetting(disabled)
	base := NewBuilder().Put(disabledSetting).Build()

	cfg := NewBuilder().InheritFrom(base).Build()
	settings := cfg.Settings()
	if len(settings) != 1 || settings[0].Root().Argument != "0" {
		t.Fatalf("expected the inherited disable to be merged back in, got %v", settings)
	}
}

func TestReassignToAuto(t *testing.T) {
	item, _ := NewLineItem(SocksPort, "9050")
	s, _ := NewSetting(item)
	s = WithExtra(s, ExtraAllowReassign, true)

	reassigned, ok := s.ReassignToAuto()
	if !ok {
		t.Fatalf("expected ReassignToAuto to succeed")
	}
	if reassigned.Root().Argument != "auto" {
		t.Fatalf("expected argument auto, got %q", reassigned.Root().Argument)
	}
	if _, present := GetExtra(reassigned, ExtraAllowReassign); present {
		t.Fatalf("expected the reassign extra to be dropped from the clone")
	}

	if _, ok := reassigned.ReassignToAuto(); ok {
		t.Fatalf("expected ReassignToAuto on an already-auto setting to fail")
	}
}

func TestReassignToAutoRejectsWithoutAllowFlag(t *testing.T) {
	item, _ := NewLineItem(SocksPort, "9050")
	s, _ := NewSetting(item)
	if _, ok := s.ReassignToAuto(); ok {
		t.Fatalf("expected ReassignToAuto to fail without ExtraAllowReassign")
	}
}

func TestReassignToAutoRejectsUnixSocket(t *testing.T) {
	item, _ := NewLineItem(SocksPort, "unix:/var/run/tor/socks.sock")
	s, _ := NewSetting(item)
	s = WithExtra(s, ExtraAllowReassign, true)
	if _, ok := s.ReassignToAuto(); ok {
		t.Fatalf("expected ReassignToAuto to reject a unix-socket argument")
	}
}

func TestHiddenServiceBuilderDefaults(t *testing.T) {
	opts := NewHiddenServiceOptions("/var/lib/tor/hidden_service", 3, NewHiddenServicePortMapping(80, ""))
	s, ok := BuildHiddenService(opts)
	if !ok {
		t.Fatalf("expected BuildHiddenService to succeed")
	}

	items := s.Items()
	if items[0].Keyword != HiddenServiceDir || items[0].Argument != "/var/lib/tor/hidden_service" {
		t.Fatalf("expected root HiddenServiceDir item, got %v", items[0])
	}

	byKeyword := map[Keyword]LineItem{}
	for _, it := range items {
		byKeyword[it.Keyword] = it
	}
	if byKeyword[HiddenServiceAllowUnknownPorts].Argument != "0" {
		t.Fatalf("expected AllowUnknownPorts default 0")
	}
	if byKeyword[HiddenServiceMaxStreams].Argument != "0" {
		t.Fatalf("expected MaxStreams default 0")
	}
	if byKeyword[HiddenServiceDirGroupReadable].Argument != "0" {
		t.Fatalf("expected DirGroupReadable default 0")
	}
	if byKeyword[HiddenServiceNumIntroductionPoints].Argument != "3" {
		t.Fatalf("expected NumIntroductionPoints default 3, got %q", byKeyword[HiddenServiceNumIntroductionPoints].Argument)
	}
	if byKeyword[HiddenServicePort].Argument != "80 80" {
		t.Fatalf("expected port mapping with target defaulting to virtual, got %q", byKeyword[HiddenServicePort].Argument)
	}
}

func TestHiddenServiceBuilderClampsIntroductionPoints(t *testing.T) {
	opts := NewHiddenServiceOptions("/hs", 3, NewHiddenServicePortMapping(80, ""))
	opts.NumIntroductionPoints = 99
	s, ok := BuildHiddenService(opts)
	if !ok {
		t.Fatalf("expected BuildHiddenService to succeed")
	}
	for _, it := range s.Items() {
		if it.Keyword == HiddenServiceNumIntroductionPoints && it.Argument != "20" {
			t.Fatalf("expected NumIntroductionPoints clamped to 20, got %q", it.Argument)
		}
	}
}

func TestHiddenServiceBuilderRejectsMissingFields(t *testing.T) {
	if _, ok := BuildHiddenService(NewHiddenServiceOptions("", 3, NewHiddenServicePortMapping(80, ""))); ok {
		t.Fatalf("expected failure for a blank directory")
	}
	if _, ok := BuildHiddenService(NewHiddenServiceOptions("/hs", 2, NewHiddenServicePortMapping(80, ""))); ok {
		t.Fatalf("expected failure for an unsupported version")
	}
	if _, ok := BuildHiddenService(NewHiddenServiceOptions("/hs", 3)); ok {
		t.Fatalf("expected failure with no port mappings")
	}
}

func TestFilterByAttributeExcludesUnixSocketArgumentsFromPort(t *testing.T) {
	tcp, _ := NewLineItem(SocksPort, "9050")
	unix, _ := NewLineItem(SocksPort, "unix:/var/run/tor/socks.sock")
	s1, _ := NewSetting(tcp)
	s2, _ := NewSetting(unix)
	cfg := NewBuilder().Put(s1).PutIfAbsent(s2).Build()
	// Distinct dedup keys (portarg:9050 vs portarg:unix:...) so both survive.
	if len(cfg.Settings()) != 2 {
		t.Fatalf("expected 2 distinct settings, got %d", len(cfg.Settings()))
	}

	ports := FilterByAttribute(cfg, Port)
	if len(ports) != 1 || ports[0].Root().Argument != "9050" {
		t.Fatalf("expected FilterByAttribute(Port) to exclude the unix-socket entry, got %v", ports)
	}

	sockets := FilterByAttribute(cfg, UnixSocket)
	if len(sockets) != 1 || sockets[0].Root().Argument != "unix:/var/run/tor/socks.sock" {
		t.Fatalf("expected FilterByAttribute(UnixSocket) to return only the unix-socket entry, got %v", sockets)
	}
}

func TestFilterByAttributeInspectsHiddenServicePortTarget(t *testing.T) {
	opts := NewHiddenServiceOptions("/hs", 3, NewHiddenServicePortMapping(80, "unix:/var/run/hs.sock"))
	hsSetting, ok := BuildHiddenService(opts)
	if !ok {
		t.Fatalf("expected BuildHiddenService to succeed")
	}
	cfg := NewBuilder().Put(hsSetting).Build()

	sockets := FilterByAttribute(cfg, UnixSocket)
	if len(sockets) != 1 {
		t.Fatalf("expected the hidden-service group to match UnixSocket filtering via its port target, got %d matches", len(sockets))
	}
}

func TestFilterByKeyword(t *testing.T) {
	socks, _ := NewLineItem(SocksPort, "9050")
	control, _ := NewLineItem(ControlPort, "9051")
	s1, _ := NewSetting(socks)
	s2, _ := NewSetting(control)
	cfg := NewBuilder().Put(s1).Put(s2).Build()

	matches := FilterByKeyword(cfg, ControlPort)
	if len(matches) != 1 || matches[0].Root().Keyword != ControlPort {
		t.Fatalf("expected exactly 1 ControlPort match, got %v", matches)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	socks, _ := NewLineItem(SocksPort, "9050")
	control, _ := NewLineItem(ControlPort, "9051", "GroupWritable")
	s1, _ := NewSetting(socks)
	s2, _ := NewSetting(control)
	cfg := NewBuilder().Put(s1).Put(s2).Build()

	rendered := cfg.String()
	reparsed, err := Parse(rendered)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !cfg.Equal(reparsed) {
		t.Fatalf("expected parse(render(config)) == config\nrendered:\n%s\nreparsed:\n%s", cfg.String(), reparsed.String())
	}
}

func TestLineItemRejectsBlankArgument(t *testing.T) {
	if _, err := NewLineItem(SocksPort, "   "); err == nil {
		t.Fatalf("expected an error for a blank argument")
	}
}

func TestLineItemRejectsMultilineArgument(t *testing.T) {
	if _, err := NewLineItem(SocksPort, "9050\n9051"); err == nil {
		t.Fatalf("expected an error for a multi-line argument")
	}
}
