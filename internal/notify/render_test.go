package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/threat"
)

func TestNewEvacuationEnvelope(t *testing.T) {
	now := time.Date(2024, 5, 20, 14, 30, 0, 0, time.UTC)
	a := threat.Assess(now,
		model.CycloneEstimate{Classification: model.CycloneClassCyclone, Probability: 0.853},
		model.SurgeEstimate{TotalWaterLevel: 3.2, Tier: model.SurgeTierHigh})

	env, err := NewEvacuationEnvelope(a, "mumbai", now)
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, model.ThreatLevelHigh, env.Level)
	assert.Equal(t, "mumbai", env.Zone)
	assert.Equal(t, "URGENT: Coastal Evacuation Alert - HIGH Threat Level", env.Email.Subject)
	assert.Contains(t, env.Email.HTML, "Threat Level: HIGH")
	assert.Contains(t, env.Email.HTML, "85.3%")
	assert.Contains(t, env.Email.HTML, "3.20m")
	assert.Contains(t, env.Email.HTML, "2024-05-20 14:30:00")
	assert.Contains(t, env.SMS, "Time: 14:30")
	assert.Contains(t, env.SMS, "EVACUATE IMMEDIATELY")
	assert.Equal(t, "Threat Level: HIGH - Evacuate immediately to higher ground", env.Push.Body)
	require.NotNil(t, env.Assessment)
	assert.Equal(t, a.Overall, env.Assessment.Overall)
	assert.Equal(t, env.Assessment, env.TriggerData())
}

func TestNewCustomEnvelope(t *testing.T) {
	now := time.Date(2024, 5, 20, 8, 5, 0, 0, time.UTC)

	env, err := NewCustomEnvelope(model.CustomAlert{Title: "Drill", Message: "Test of <b>sirens</b>"}, model.ThreatLevelMedium, "", now)
	require.NoError(t, err)

	assert.Equal(t, model.ThreatLevelMedium, env.Level)
	assert.Equal(t, "URGENT: Drill - MEDIUM Threat Level", env.Email.Subject)
	assert.Contains(t, env.Email.HTML, "Test of &lt;b&gt;sirens&lt;/b&gt;")
	assert.Contains(t, env.Email.HTML, "Prepare evacuation plan")
	assert.Contains(t, env.SMS, "Test of <b>sirens</b>")
	assert.NotContains(t, env.SMS, "EVACUATE IMMEDIATELY")
	assert.Equal(t, model.PushMessage{Title: "Drill", Body: "Test of <b>sirens</b>"}, env.Push)
	assert.Nil(t, env.Assessment)
}

func TestNewCustomEnvelope_Defaults(t *testing.T) {
	env, err := NewCustomEnvelope(model.CustomAlert{Message: "Stay indoors"}, "", "zone-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ThreatLevelHigh, env.Level)
	assert.Equal(t, "Custom Alert", env.Custom.Title)

	_, err = NewCustomEnvelope(model.CustomAlert{Title: "x"}, model.ThreatLevelLow, "", time.Now())
	assert.Error(t, err)

	_, err = NewCustomEnvelope(model.CustomAlert{Message: "x"}, "SEVERE", "", time.Now())
	assert.Error(t, err)
}
