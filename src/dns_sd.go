package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the event stream service using DNS-SD
 *
 * Description:
 *
 *     A dashboard on the local network can find the validator without
 *     anyone typing in an address and port.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package for
 *     mDNS/DNS-SD service announcement without requiring any system
 *     daemon.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_aisverify._tcp" //nolint:revive

/* By default, "aisverify on <hostname>", or just "aisverify" if the
 * hostname cannot be obtained.
 */
func defaultServiceName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil {
		return "aisverify"
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return "aisverify on " + hostname
}

// AnnounceEventService advertises the event server until ctx is cancelled.
func AnnounceEventService(ctx context.Context, name string, port int, logger *log.Logger) error {
	if name == "" {
		name = defaultServiceName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	if _, addErr := rp.Add(sv); addErr != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", addErr)
	}

	logger.Info("DNS-SD: announcing event stream", "port", port, "name", name)

	go func() {
		var respondErr = rp.Respond(ctx)
		if respondErr != nil && ctx.Err() == nil {
			logger.Error("DNS-SD: responder error", "err", respondErr)
		}
	}()

	return nil
}
