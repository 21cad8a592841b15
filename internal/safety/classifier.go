package safety

import (
	"fmt"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

// RiskTier grades how much damage mutating a device would do
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Source is what the classifier needs from the platform
type Source interface {
	platform.SystemSource
	platform.MountTable
}

// Assessment is a point-in-time safety verdict for one device
type Assessment struct {
	Device            string                      `json:"device"`
	IsSystemDevice    bool                        `json:"is_system_device"`
	IsRemovable       bool                        `json:"is_removable"`
	MountedPartitions []platform.MountedPartition `json:"mounted_partitions"`
	RiskTier          RiskTier                    `json:"risk_tier"`
	// Degraded is set when an OS query failed and the verdict fell back to critical
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

var defaultSensitive = []string{"/home", "/Users", "/root", "/srv"}

type state struct {
	set *ProtectedSet
	err error
}

// Classifier decides whether a device may be mutated
type Classifier struct {
	src       Source
	extra     []string
	sensitive []string
	current   atomic.Pointer[state]
}

// Option configures a Classifier
type Option func(*Classifier)

// WithExtraProtected adds mountpoints whose devices are never safe
func WithExtraProtected(mountpoints ...string) Option {
	return func(c *Classifier) { c.extra = append(c.extra, mountpoints...) }
}

// WithSensitive adds mountpoints that raise the risk tier to high
func WithSensitive(mountpoints ...string) Option {
	return func(c *Classifier) { c.sensitive = append(c.sensitive, mountpoints...) }
}

// NewClassifier discovers the protected set once. A failed discovery is kept and makes every device unsafe until Refresh succeeds.
func NewClassifier(src Source, opts ...Option) *Classifier {
	c := &Classifier{src: src, sensitive: append([]string{}, defaultSensitive...)}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Refresh(); err != nil {
		log.WithError(err).Warn("Failed to discover system devices, treating every device as unsafe")
	}
	return c
}

// Refresh recomputes the protected set and swaps it in atomically
func (c *Classifier) Refresh() error {
	set, err := Discover(c.src, c.extra...)
	c.current.Store(&state{set: set, err: err})
	if err == nil {
		log.WithFields(log.Fields{"devices": set.Devices(), "mountpoints": len(set.Mountpoints())}).Debug("Protected set discovered")
	}
	return err
}

// ProtectedSet returns the set currently in use
func (c *Classifier) ProtectedSet() *ProtectedSet {
	return c.current.Load().set
}

// mountTable reads the mount table with every device and parent replaced by its canonical node.
// Entries that cannot be resolved keep the reported name.
func (c *Classifier) mountTable() ([]platform.MountedPartition, error) {
	mounts, err := c.src.MountedPartitions()
	if err != nil {
		return nil, err
	}
	for i := range mounts {
		if real, err := c.src.Canonical(mounts[i].Device); err == nil {
			mounts[i].Device = real
		}
		if mounts[i].Parent == "" {
			continue
		}
		if real, err := c.src.Canonical(mounts[i].Parent); err == nil {
			mounts[i].Parent = real
		}
	}
	return mounts, nil
}

func relatedMounts(id string, mounts []platform.MountedPartition) []platform.MountedPartition {
	related := []platform.MountedPartition{}
	for _, m := range mounts {
		if platform.Related(id, m.Device) || (m.Parent != "" && platform.NormalizeDevice(m.Parent) == platform.NormalizeDevice(id)) {
			related = append(related, m)
		}
	}
	return related
}

// IsSafeDevice is false for system devices, devices with a partition mounted at a protected location,
// identities that do not resolve to a device node, and whenever the OS cannot be queried.
func (c *Classifier) IsSafeDevice(id string) bool {
	st := c.current.Load()
	if st.err != nil {
		return false
	}
	real, err := c.src.Canonical(id)
	if err != nil {
		log.WithError(err).WithField("device", id).Warn("Device path unresolvable, refusing device")
		return false
	}
	if st.set.IsSystemDevice(id) || st.set.IsSystemDevice(real) {
		return false
	}
	id = real
	mounts, err := c.mountTable()
	if err != nil {
		log.WithError(err).WithField("device", id).Warn("Mount table unreadable, refusing device")
		return false
	}
	for _, m := range relatedMounts(id, mounts) {
		if st.set.IsProtectedMountpoint(m.Mountpoint) {
			return false
		}
	}
	return true
}

func (c *Classifier) isSensitive(mp string) bool {
	mp = cleanMountpoint(mp)
	for _, s := range c.sensitive {
		s = cleanMountpoint(s)
		if mp == s || strings.HasPrefix(mp, s+"/") {
			return true
		}
	}
	return false
}

// Assess grades id. On OS query failure the assessment is critical and degraded, and the error is returned alongside it.
// The assessed Device is the canonical node, so aliases of one disk share a confirmation phrase.
func (c *Classifier) Assess(id string) (Assessment, error) {
	a := Assessment{
		Device:            id,
		MountedPartitions: []platform.MountedPartition{},
		RiskTier:          RiskCritical,
		Degraded:          true,
	}
	real, err := c.src.Canonical(id)
	if err != nil {
		a.Reasons = append(a.Reasons, "device path does not resolve to a device node")
		return a, err
	}
	a.Device, a.IsRemovable = real, c.src.IsRemovable(real)

	st := c.current.Load()
	if st.err != nil {
		a.Reasons = append(a.Reasons, "system devices could not be determined")
		return a, st.err
	}

	mounts, err := c.mountTable()
	if err != nil {
		a.Reasons = append(a.Reasons, "mount table could not be read")
		return a, err
	}
	a.RiskTier, a.Degraded = RiskLow, false
	a.MountedPartitions = relatedMounts(real, mounts)

	if st.set.IsSystemDevice(id) || st.set.IsSystemDevice(real) {
		a.IsSystemDevice = true
		a.RiskTier = RiskCritical
		a.Reasons = append(a.Reasons, "device hosts the running operating system")
	}
	for _, m := range a.MountedPartitions {
		switch {
		case st.set.IsProtectedMountpoint(m.Mountpoint):
			a.RiskTier = RiskCritical
			a.Reasons = append(a.Reasons, fmt.Sprintf("%s is mounted at protected location %s", m.Device, m.Mountpoint))
		case c.isSensitive(m.Mountpoint):
			if a.RiskTier == RiskLow {
				a.RiskTier = RiskHigh
			}
			a.Reasons = append(a.Reasons, fmt.Sprintf("%s is mounted at user data location %s", m.Device, m.Mountpoint))
		}
	}
	return a, nil
}

// Validate reports whether an operation on id may proceed and why
func (c *Classifier) Validate(id, operation string) (bool, string) {
	a, err := c.Assess(id)
	if err != nil {
		return false, fmt.Sprintf("Operation blocked: unable to verify device safety: %v", err)
	}
	if a.IsSystemDevice && a.RiskTier == RiskCritical {
		return false, "Operation blocked: Critical system device"
	}
	if !c.IsSafeDevice(id) {
		return false, "Operation blocked: device has a partition mounted at a protected location"
	}
	if a.IsRemovable {
		return true, "Safe removable device"
	}
	return true, "Requires confirmation"
}
