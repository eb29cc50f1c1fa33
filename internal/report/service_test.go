package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
	"clinical-decision-agent/internal/safety"
)

type fakeSender struct {
	messages  []string
	documents []string
	err       error
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeSender) SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error {
	f.documents = append(f.documents, fileName)
	return f.err
}

func unsafeRun() *pipeline.State {
	p := &patient.Profile{
		ID:         "P001",
		Name:       "Ramesh Kumar",
		Age:        67,
		Gender:     "Male",
		Conditions: []string{"Chronic Kidney Disease (Stage 3)"},
	}
	p.Normalize()
	w := safety.Warning{Kind: safety.ConditionContraindication, Drug: "levofloxacin", Condition: "Chronic Kidney Disease (Stage 3)", Reason: "Requires renal dose adjustment."}
	return &pipeline.State{
		RunID:     uuid.New(),
		PatientID: "P001",
		UserQuery: "Patient has high fever and chest infection. Recommend antibiotics.",
		Phase:     pipeline.PhaseValidated,
		Profile:   p,
		Research:  &pipeline.Research{Findings: "**Clinical Recommendation:** Levofloxacin 500mg OD\n\n**Evidence Basis:** ICMR", Source: pipeline.SourceModel},
		Safety: &safety.Report{
			Warnings: []safety.Warning{w},
			Status:   safety.StatusWarning,
		},
		SafetyCheck: "SAFETY WARNINGS DETECTED:\n- " + w.String(),
		FinalAnswer: "SAFETY WARNINGS DETECTED:\n- " + w.String(),
	}
}

func installedFont() string {
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func TestAlertText(t *testing.T) {
	st := unsafeRun()
	text := AlertText(st)

	assert.True(t, strings.HasPrefix(text, "SAFETY ALERT [WARNING]\nPatient: P001 (Ramesh Kumar)"))
	assert.Contains(t, text, "- CONTRAINDICATION: LEVOFLOXACIN + Chronic Kidney Disease (Stage 3). Requires renal dose adjustment.")
	assert.Contains(t, text, st.RunID.String())
}

func TestRenderWithoutFont(t *testing.T) {
	svc := &Service{fontPaths: []string{"/nonexistent/font.ttf"}, logger: zaptest.NewLogger(t)}

	_, err := svc.Render(unsafeRun())
	assert.True(t, errors.Is(err, ErrFontUnavailable), "got %v", err)
}

func TestRender(t *testing.T) {
	font := installedFont()
	if font == "" {
		t.Skip("DejaVuSans.ttf not installed")
	}
	svc := NewService(nil, 0, font, zaptest.NewLogger(t))

	st := unsafeRun()
	st.Research.Findings = strings.Repeat("Long research paragraph with dosing notes. ", 400)
	pdf, err := svc.Render(st)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestDeliver(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		err := NewService(nil, 0, "", zaptest.NewLogger(t)).Deliver(context.Background(), unsafeRun())
		assert.Error(t, err)
	})

	t.Run("alert sent even without font", func(t *testing.T) {
		sender := &fakeSender{}
		svc := NewService(sender, 99, "", zaptest.NewLogger(t))
		svc.fontPaths = []string{"/nonexistent/font.ttf"}

		err := svc.Deliver(context.Background(), unsafeRun())
		assert.True(t, errors.Is(err, ErrFontUnavailable), "got %v", err)
		assert.Len(t, sender.messages, 1)
		assert.Empty(t, sender.documents)
	})

	t.Run("send failure", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("chat not found")}
		err := NewService(sender, 99, "", zaptest.NewLogger(t)).Deliver(context.Background(), unsafeRun())
		assert.ErrorContains(t, err, "chat not found")
	})

	t.Run("with font", func(t *testing.T) {
		font := installedFont()
		if font == "" {
			t.Skip("DejaVuSans.ttf not installed")
		}
		sender := &fakeSender{}
		st := unsafeRun()
		require.NoError(t, NewService(sender, 99, font, zaptest.NewLogger(t)).Deliver(context.Background(), st))
		assert.Equal(t, []string{"report_" + st.RunID.String() + ".pdf"}, sender.documents)
	})
}
