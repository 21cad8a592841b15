package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utkarshgautam22/DiskForge/internal/platform"
)

func TestConfirmationPhrase(t *testing.T) {
	critical := Assessment{Device: "/dev/sda", RiskTier: RiskCritical}
	assert.Equal(t, "I UNDERSTAND THE RISK", critical.ConfirmationPhrase())
	assert.True(t, critical.Confirm("I UNDERSTAND THE RISK\n"))
	assert.False(t, critical.Confirm("/dev/sda"))
	assert.False(t, critical.Confirm("i understand the risk"))

	for _, tier := range []RiskTier{RiskLow, RiskHigh} {
		a := Assessment{Device: "/dev/sdb", RiskTier: tier}
		assert.Equal(t, "/dev/sdb", a.ConfirmationPhrase())
		assert.True(t, a.Confirm("/dev/sdb"))
		assert.False(t, a.Confirm(CriticalPhrase))
	}
}

func TestConfirmationMessage(t *testing.T) {
	a := Assessment{
		Device:   "/dev/sda",
		RiskTier: RiskCritical,
		MountedPartitions: []platform.MountedPartition{
			{Device: "/dev/sda2", Mountpoint: "/"},
		},
	}
	msg := a.ConfirmationMessage("format")
	assert.Contains(t, msg, "SYSTEM DEVICE: /dev/sda")
	assert.Contains(t, msg, "/dev/sda2 mounted at /")
	assert.Contains(t, msg, "Type 'I UNDERSTAND THE RISK' to continue")

	low := Assessment{Device: "/dev/sdb", RiskTier: RiskLow}
	msg = low.ConfirmationMessage("write an image to")
	assert.Contains(t, msg, "You are about to write an image to /dev/sdb.")
	assert.Contains(t, msg, "Type '/dev/sdb' to continue")
	assert.NotContains(t, msg, "CRITICAL")
}
