package imaging

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kdomanski/iso9660"
	log "github.com/sirupsen/logrus"
	utilexec "k8s.io/utils/exec"
)

// Strategy is how an image is put on a device
type Strategy int

const (
	// StrategyAuto asks the selector to choose
	StrategyAuto Strategy = iota
	// RawCopy streams the image byte for byte onto the device
	RawCopy
	// FilesystemExtract formats the device and copies the image's files onto it
	FilesystemExtract
	// OSInstallerExtract is FilesystemExtract for installer media, without a bootloader step
	OSInstallerExtract
)

var strategyNames = map[Strategy]string{
	StrategyAuto:       "auto",
	RawCopy:            "raw",
	FilesystemExtract:  "extract",
	OSInstallerExtract: "installer",
}

var strategyAliases = map[string]Strategy{
	"auto":      StrategyAuto,
	"raw":       RawCopy,
	"dd":        RawCopy,
	"hybrid":    RawCopy,
	"extract":   FilesystemExtract,
	"iso9660":   FilesystemExtract,
	"installer": OSInstallerExtract,
	"windows":   OSInstallerExtract,
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Strategy) valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseStrategy maps a method name (auto, dd, hybrid, iso9660, windows, ...) to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	s, ok := strategyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
	}
	return s, nil
}

// Markers are the boot layout hints found in an image
type Markers struct {
	// Installer is set for sources/install.wim or sources/install.esd
	Installer bool `json:"installer"`
	EFIBoot   bool `json:"efi_boot"`
	Isolinux  bool `json:"isolinux"`
}

// Selector picks a strategy by looking inside the image
type Selector struct {
	exec utilexec.Interface
}

// NewSelector creates a selector; exec is used for the isoinfo fallback and may be nil
func NewSelector(exec utilexec.Interface) *Selector {
	return &Selector{exec: exec}
}

// Select returns the strategy for image. Any inspection failure yields RawCopy.
func (s *Selector) Select(ctx context.Context, image string) Strategy {
	m, err := s.Inspect(ctx, image)
	if err != nil {
		log.WithError(err).WithField("image", image).Warn("Failed to inspect image, falling back to raw copy")
		return RawCopy
	}
	strategy := RawCopy
	if m.Installer {
		strategy = OSInstallerExtract
	}
	log.WithFields(log.Fields{"image": image, "markers": fmt.Sprintf("%+v", m), "strategy": strategy}).Info("Selected write strategy")
	return strategy
}

// Inspect reads the ISO-9660 directory tree of image without mounting it.
// When the tree shows no marker, the Joliet listing from isoinfo is consulted too.
func (s *Selector) Inspect(ctx context.Context, image string) (Markers, error) {
	m, treeErr := inspectTree(image)
	if m.Installer {
		return m, nil
	}
	joliet, err := s.inspectJoliet(ctx, image)
	if err != nil {
		if treeErr != nil {
			return Markers{}, treeErr
		}
		return m, nil
	}
	return Markers{
		Installer: m.Installer || joliet.Installer,
		EFIBoot:   m.EFIBoot || joliet.EFIBoot,
		Isolinux:  m.Isolinux || joliet.Isolinux,
	}, nil
}

func inspectTree(image string) (Markers, error) {
	f, err := os.Open(image)
	if err != nil {
		return Markers{}, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	defer f.Close()

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return Markers{}, fmt.Errorf("failed to read iso9660 volume: %w", err)
	}
	root, err := img.RootDir()
	if err != nil {
		return Markers{}, fmt.Errorf("failed to read root directory: %w", err)
	}

	var m Markers
	top, err := root.GetChildren()
	if err != nil {
		return Markers{}, fmt.Errorf("failed to list root directory: %w", err)
	}
	for _, entry := range top {
		if !entry.IsDir() {
			continue
		}
		switch strings.ToLower(entry.Name()) {
		case "isolinux":
			m.Isolinux = true
		case "sources":
			m.Installer = hasChild(entry, false, "install.wim", "install.esd")
		case "efi":
			m.EFIBoot = hasChild(entry, true, "boot")
		}
	}
	return m, nil
}

func hasChild(dir *iso9660.File, wantDir bool, names ...string) bool {
	children, err := dir.GetChildren()
	if err != nil {
		return false
	}
	for _, c := range children {
		if c.IsDir() != wantDir {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(c.Name(), n) {
				return true
			}
		}
	}
	return false
}

func (s *Selector) inspectJoliet(ctx context.Context, image string) (Markers, error) {
	if s.exec == nil {
		return Markers{}, fmt.Errorf("isoinfo: no executor")
	}
	if _, err := s.exec.LookPath("isoinfo"); err != nil {
		return Markers{}, err
	}
	log.WithFields(log.Fields{"cmd": "isoinfo", "image": image}).Debug("Listing Joliet tree")
	out, err := s.exec.CommandContext(ctx, "isoinfo", "-J", "-f", "-i", image).Output()
	if err != nil {
		return Markers{}, fmt.Errorf("isoinfo: %w", err)
	}
	return parseJolietListing(out), nil
}

// parseJolietListing reads the one-path-per-line output of isoinfo -f
func parseJolietListing(out []byte) Markers {
	var m Markers
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		p := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(sc.Text()), ";1"))
		switch {
		case p == "/sources/install.wim" || p == "/sources/install.esd":
			m.Installer = true
		case p == "/efi/boot" || strings.HasPrefix(p, "/efi/boot/"):
			m.EFIBoot = true
		case p == "/isolinux" || strings.HasPrefix(p, "/isolinux/"):
			m.Isolinux = true
		}
	}
	return m
}
