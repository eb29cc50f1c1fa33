// Package report renders a finished pipeline run as a PDF and delivers
// clinician alerts for unsafe runs.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
)

var ErrFontUnavailable = errors.New("no usable report font")

// DefaultFontPaths are tried in order after any configured font.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontName  = "DejaVu"
	textWidth = 500
	pageLimit = 780
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	sender       Sender
	doctorChatID int64
	fontPaths    []string
	logger       *zap.Logger
}

// NewService builds a report service. fontPath may be empty; sender may be
// nil when alerts are disabled, in which case only Render is usable.
func NewService(sender Sender, doctorChatID int64, fontPath string, logger *zap.Logger) *Service {
	paths := DefaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, DefaultFontPaths...)
	}
	return &Service{
		sender:       sender,
		doctorChatID: doctorChatID,
		fontPaths:    paths,
		logger:       logger,
	}
}

type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontName, "", size)
	}
}

func (w *writer) line(text string, height float64) {
	if w.err != nil {
		return
	}
	if w.pdf.GetY() > pageLimit {
		w.pdf.AddPage()
	}
	w.err = w.pdf.Cell(nil, text)
	w.pdf.Br(height)
}

// paragraph wraps text to the page width, keeping its own line breaks.
func (w *writer) paragraph(text string) {
	for _, raw := range strings.Split(text, "\n") {
		if w.err != nil {
			return
		}
		if strings.TrimSpace(raw) == "" {
			w.pdf.Br(8)
			continue
		}
		lines, err := w.pdf.SplitText(raw, textWidth)
		if err != nil {
			w.err = err
			return
		}
		for _, l := range lines {
			w.line(l, 14)
		}
	}
}

func (w *writer) heading(text string) {
	w.font(14)
	w.line(text, 18)
	w.font(11)
}

// Render produces the PDF recommendation report for a completed run.
func (s *Service) Render(st *pipeline.State) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	loaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err != nil {
			fontErr = err
			continue
		}
		loaded = true
		break
	}
	if !loaded {
		return nil, fmt.Errorf("%w: tried %d paths: %w", ErrFontUnavailable, len(s.fontPaths), fontErr)
	}

	w := &writer{pdf: pdf}
	w.font(20)
	w.line("Clinical Decision Support Report", 30)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", time.Now().Format("02.01.2006 15:04")), 15)
	w.line(fmt.Sprintf("Run: %s", st.RunID), 15)
	w.line(fmt.Sprintf("Patient ID: %s", st.PatientID), 25)

	if p := st.Profile; p != nil {
		w.heading("Patient Profile")
		w.paragraph(fmt.Sprintf("Name: %s | Age: %s | Gender: %s", orNA(p.Name), p.AgeText(), p.Gender))
		w.paragraph("Conditions: " + patient.JoinOr(p.Conditions, "None"))
		w.paragraph("Current Meds: " + patient.JoinOr(p.Medications, "None"))
		w.paragraph("Allergies: " + patient.JoinOr(p.Allergies, "None"))
		w.paragraph("Labs: " + p.LabFlags)
		w.pdf.Br(10)
	}

	w.heading("Clinical Query")
	w.paragraph(st.UserQuery)
	w.pdf.Br(10)

	if r := st.Research; r != nil {
		w.heading(fmt.Sprintf("Research Findings (%s)", r.Source))
		w.paragraph(r.Findings)
		w.pdf.Br(10)
	}

	if sr := st.Safety; sr != nil {
		w.heading(fmt.Sprintf("Safety Validation: %s", sr.Status))
		w.paragraph(st.SafetyCheck)
	}

	w.font(9)
	w.pdf.Br(20)
	w.paragraph("Decision support only. Final prescribing decisions rest with the treating clinician.")

	if w.err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// AlertText is the chat message sent to the clinician for an unsafe run.
func AlertText(st *pipeline.State) string {
	var b strings.Builder
	status := "UNKNOWN"
	if st.Safety != nil {
		status = string(st.Safety.Status)
	}
	fmt.Fprintf(&b, "SAFETY ALERT [%s]\n", status)
	fmt.Fprintf(&b, "Patient: %s", st.PatientID)
	if st.Profile != nil && st.Profile.Name != "" {
		fmt.Fprintf(&b, " (%s)", st.Profile.Name)
	}
	fmt.Fprintf(&b, "\nQuery: %s\n", st.UserQuery)
	if st.Safety != nil {
		for _, w := range st.Safety.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	fmt.Fprintf(&b, "Run: %s", st.RunID)
	return b.String()
}

// Deliver sends the text alert and then the PDF report to the clinician
// chat. The alert goes out even when the PDF cannot be rendered.
func (s *Service) Deliver(ctx context.Context, st *pipeline.State) error {
	if s.sender == nil || s.doctorChatID == 0 {
		return errors.New("clinician alerts are not configured")
	}
	log := s.logger.With(zap.String("run_id", st.RunID.String()), zap.Int64("chat_id", s.doctorChatID))

	if err := s.sender.SendMessage(ctx, s.doctorChatID, AlertText(st)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	pdf, err := s.Render(st)
	if err != nil {
		return err
	}
	fileName := fmt.Sprintf("report_%s.pdf", st.RunID)
	if err := s.sender.SendDocument(ctx, s.doctorChatID, pdf, fileName); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	log.Info("clinician report delivered", zap.Int("bytes", len(pdf)))
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
