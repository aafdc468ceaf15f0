package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/threat"
)

const alertEmailHTML = `<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 2px solid #ff4444; border-radius: 10px;">
    <h1 style="color: #ff4444; text-align: center;">{{.Heading}}</h1>
    <div style="background-color: #fff3cd; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h2 style="color: #856404; margin-top: 0;">Threat Level: {{.Level}}</h2>
      <p style="margin-bottom: 0;"><strong>Time:</strong> {{.Time}}</p>
      {{- if .Zone}}
      <p style="margin-bottom: 0;"><strong>Zone:</strong> {{.Zone}}</p>
      {{- end}}
    </div>
    {{- if .Message}}
    <div style="background-color: #f8d7da; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <p style="color: #721c24;">{{.Message}}</p>
    </div>
    {{- end}}
    <div style="background-color: #f8d7da; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h3 style="color: #721c24; margin-top: 0;">IMMEDIATE ACTION REQUIRED</h3>
      <ul style="color: #721c24;">
        {{- range .Actions}}
        <li>{{.}}</li>
        {{- end}}
      </ul>
    </div>
    {{- if .Details}}
    <div style="background-color: #e7f3ff; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h3 style="color: #0c5460; margin-top: 0;">Threat Details:</h3>
      <p><strong>Cyclone Probability:</strong> {{.CycloneProbability}}</p>
      <p><strong>Storm Surge Level:</strong> {{.SurgeTier}}</p>
      <p><strong>Estimated Water Level:</strong> {{.WaterLevel}}</p>
    </div>
    {{- end}}
    <p style="text-align: center; color: #666; font-size: 12px;">
      This is an automated alert from the Coastal Threat Alert System (CTAS).
      Please follow official instructions from emergency services.
    </p>
  </div>
</body>
</html>`

const alertSMSText = `{{.Heading}}
Threat Level: {{.Level}}
Time: {{.ShortTime}}
{{- if .Message}}

{{.Message}}
{{- end}}

{{- if .Evacuate}}

EVACUATE IMMEDIATELY
- Move to higher ground
- Follow emergency instructions
- Take essential items only
{{- end}}

CTAS Alert System`

var (
	emailTemplate = htmltemplate.Must(htmltemplate.New("email").Parse(alertEmailHTML))
	smsTemplate   = template.Must(template.New("sms").Parse(alertSMSText))
)

var evacuationActions = []string{
	"Evacuate to higher ground immediately",
	"Follow emergency services instructions",
	"Take essential items only",
	"Do not return until authorities give clearance",
}

type renderData struct {
	Heading            string
	Level              model.ThreatLevel
	Time               string
	ShortTime          string
	Zone               string
	Message            string
	Actions            []string
	Evacuate           bool
	Details            bool
	CycloneProbability string
	SurgeTier          string
	WaterLevel         string
}

// NewEvacuationEnvelope renders the evacuation alert for an assessment
func NewEvacuationEnvelope(a model.ThreatAssessment, zone string, now time.Time) (*model.AlertEnvelope, error) {
	data := renderData{
		Heading:            "COASTAL EVACUATION ALERT",
		Level:              a.Overall,
		Time:               now.Format("2006-01-02 15:04:05"),
		ShortTime:          now.Format("15:04"),
		Zone:               zone,
		Actions:            evacuationActions,
		Evacuate:           true,
		Details:            true,
		CycloneProbability: fmt.Sprintf("%.1f%%", a.Cyclone.Probability*100),
		SurgeTier:          string(a.Surge.Tier),
		WaterLevel:         fmt.Sprintf("%.2fm", a.Surge.TotalWaterLevel),
	}

	env := &model.AlertEnvelope{
		ID:         uuid.New().String(),
		Level:      a.Overall,
		Assessment: &a,
		Zone:       zone,
		CreatedAt:  now,
		Push: model.PushMessage{
			Title: "Coastal Evacuation Alert",
			Body:  fmt.Sprintf("Threat Level: %s - Evacuate immediately to higher ground", a.Overall),
		},
	}
	env.Email.Subject = fmt.Sprintf("URGENT: Coastal Evacuation Alert - %s Threat Level", a.Overall)

	if err := render(env, data); err != nil {
		return nil, err
	}
	return env, nil
}

// NewCustomEnvelope renders an operator-supplied alert. An empty level means HIGH.
func NewCustomEnvelope(custom model.CustomAlert, level model.ThreatLevel, zone string, now time.Time) (*model.AlertEnvelope, error) {
	if level == "" {
		level = model.ThreatLevelHigh
	}
	if !level.Valid() {
		return nil, fmt.Errorf("invalid threat level %q", level)
	}
	custom.Title = strings.TrimSpace(custom.Title)
	if custom.Title == "" {
		custom.Title = "Custom Alert"
	}
	if strings.TrimSpace(custom.Message) == "" {
		return nil, fmt.Errorf("custom alert message is empty")
	}

	data := renderData{
		Heading:   strings.ToUpper(custom.Title),
		Level:     level,
		Time:      now.Format("2006-01-02 15:04:05"),
		ShortTime: now.Format("15:04"),
		Zone:      zone,
		Message:   custom.Message,
		Actions:   threat.Recommendations(level),
		Evacuate:  level == model.ThreatLevelHigh,
	}

	env := &model.AlertEnvelope{
		ID:        uuid.New().String(),
		Level:     level,
		Custom:    &custom,
		Zone:      zone,
		CreatedAt: now,
		Push: model.PushMessage{
			Title: custom.Title,
			Body:  custom.Message,
		},
	}
	env.Email.Subject = fmt.Sprintf("URGENT: %s - %s Threat Level", custom.Title, level)

	if err := render(env, data); err != nil {
		return nil, err
	}
	return env, nil
}

func render(env *model.AlertEnvelope, data renderData) error {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	env.Email.HTML = buf.String()

	buf.Reset()
	if err := smsTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render sms: %w", err)
	}
	env.SMS = buf.String()
	return nil
}
