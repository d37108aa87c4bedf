package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

const upPoll = 500 * time.Millisecond

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type linkFunc func(iface string) (up bool, err error)

// NMCLI drives NetworkManager through the nmcli command line tool.
type NMCLI struct {
	iface   string
	profile string
	creds   Credentials

	run  runFunc
	link linkFunc
}

// NewNMCLI creates a station for the given wireless interface.
func NewNMCLI(iface string) *NMCLI {
	return &NMCLI{
		iface:   iface,
		profile: "goclimate-" + iface,
		run:     runCommand,
		link:    linkUp,
	}
}

// Configure replaces the connection profile with one for creds.
func (n *NMCLI) Configure(ctx context.Context, creds Credentials) error {
	if creds.SSID == "" {
		return errors.New("empty SSID")
	}
	n.creds = creds

	// A missing profile is not an error here.
	_, _ = n.run(ctx, "nmcli", "connection", "delete", "id", n.profile)

	args := []string{"connection", "add", "type", "wifi",
		"ifname", n.iface, "con-name", n.profile, "ssid", creds.SSID,
		"connection.autoconnect", "no"}
	if creds.Password != "" {
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", creds.Password)
	}
	return n.nmcli(ctx, args...)
}

// Start turns the wifi radio on.
func (n *NMCLI) Start(ctx context.Context) error {
	return n.nmcli(ctx, "radio", "wifi", "on")
}

// Connect activates the profile.
func (n *NMCLI) Connect(ctx context.Context) error {
	return n.nmcli(ctx, "connection", "up", "id", n.profile, "ifname", n.iface)
}

// WaitUp polls until the interface is up and has an IPv4 address.
func (n *NMCLI) WaitUp(ctx context.Context) error {
	ticker := time.NewTicker(upPoll)
	defer ticker.Stop()

	for {
		up, err := n.link(n.iface)
		if err != nil {
			return err
		}
		if up {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("interface %s not up: %w", n.iface, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (n *NMCLI) nmcli(ctx context.Context, args ...string) error {
	out, err := n.run(ctx, "nmcli", args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if n.creds.Password != "" {
			msg = strings.ReplaceAll(msg, n.creds.Password, "***")
		}
		return fmt.Errorf("nmcli %s: %w: %s", args[0]+" "+args[1], err, msg)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func linkUp(iface string) (bool, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return false, fmt.Errorf("interface %s: %w", iface, err)
	}
	if ifi.Flags&net.FlagUp == 0 {
		return false, nil
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return false, fmt.Errorf("interface %s addresses: %w", iface, err)
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
			return true, nil
		}
	}
	return false, nil
}
