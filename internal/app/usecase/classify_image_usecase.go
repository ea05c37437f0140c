package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

// VisionRequest is one multimodal completion: a text instruction plus an inline image.
type VisionRequest struct {
	Prompt   string
	Image    []byte
	MimeType string
}

// Base64 returns the image payload as sent to providers.
func (r VisionRequest) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Image)
}

// DataURL returns the image as a data: URL.
func (r VisionRequest) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.MimeType, r.Base64())
}

// VisionModel abstracts the provider that answers the classification prompt.
type VisionModel interface {
	Complete(ctx context.Context, req VisionRequest) (string, error)
	Name() string
}

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

const defaultMimeType = "image/jpeg"

const classificationPrompt = `You are analyzing an image for a civic issue reporting app in Goa, India.

Analyze this image and determine:
1. Is this image AI-GENERATED, FAKE, or EDITED/DOCTORED? (Look for unrealistic lighting, textures, text artifacts, or typical AI generation signs).
2. Is this content VULGAR, CENSORED, PORNOGRAPHIC, EXTREMELY VIOLENT, or INAPPROPRIATE? (Yes/No)
3. Is this a VALID civic issue? (garbage, pothole, road damage, accident, fire, etc.)
4. Selfies, random photos, blurry images, scenic photos, or unrelated content are INVALID.

Additional context from user: "%s"

Response Logic:
- If AI-GENERATED/FAKE: Set "isAiGenerated": true, "isValid": false.
- If VULGAR/INAPPROPRIATE: Set "isSevereViolation": true, "category": "Police", "isValid": true (to report it).
- If VALID CIVIC ISSUE: Set "isValid": true and categorize.

Categories:
- 'PWD' = Roads, Potholes, Footpaths, Bridges
- 'Electricity' = Wires, Streetlights, Transformers
- 'Health' = Health hazards, Dead animals, Stagnant water
- 'Police' = Accidents, Crimes, Law violations
- 'Fire' = Fire, Smoke, Gas leaks
- 'Municipal' = Garbage, Waste, Sewage, Drains

Return ONLY a JSON object:
{
  "isValid": boolean,
  "isSevereViolation": boolean,
  "isAiGenerated": boolean,
  "category": "PWD" | "Electricity" | "Health" | "Police" | "Fire" | "Municipal" | "Invalid",
  "description": "Brief description"
}`

const (
	msgAIGenerated     = "⚠️ AI-generated or fake images are not allowed."
	msgSevereViolation = "⚠️ STRICT ACTION: Content flagged as inappropriate/vulgar. 50 points deducted and reported to Cyber Cell."
	msgThreeStrikes    = "⚠️ 3 invalid submissions! 50 points deducted."

	msgInvalidAPIKey = "Invalid API Key"
	msgRateLimited   = "Rate limit exceeded. Please wait."
	msgNetwork       = "Network error. Check internet connection."
	msgCancelled     = "Request cancelled."
	msgFailed        = "AI Validation failed."
)

// ClassificationPrompt returns the fixed instruction with the user's hint embedded.
func ClassificationPrompt(hint string) string {
	return fmt.Sprintf(classificationPrompt, hint)
}

type modelVerdict struct {
	IsValid           bool   `json:"isValid"`
	IsSevereViolation bool   `json:"isSevereViolation"`
	IsAiGenerated     bool   `json:"isAiGenerated"`
	Category          string `json:"category"`
	Description       string `json:"description"`
}

var fenceRe = regexp.MustCompile("(?i)```(json)?\\s*")

// StripCodeFences removes ``` and ```json markers around a model answer.
func StripCodeFences(content string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(content, ""))
}

func parseVerdict(content string) (modelVerdict, error) {
	var v modelVerdict
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &v); err != nil {
		return modelVerdict{}, fmt.Errorf("parse classifier answer: %w", err)
	}
	return v, nil
}

type ClassifyImageUsecase struct {
	model    VisionModel
	warnings *WarningPolicy
	log      *zap.Logger
}

func NewClassifyImageUsecase(model VisionModel, warnings *WarningPolicy, log *zap.Logger) *ClassifyImageUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClassifyImageUsecase{model: model, warnings: warnings, log: log}
}

// Execute classifies one image and settles the verdict against the session's
// warning counter in one step.
func (uc *ClassifyImageUsecase) Execute(ctx context.Context, session *domain.Session, image Image, hint string) (domain.ClassificationResult, error) {
	return uc.Settle(ctx, session, uc.Classify(ctx, session, image, hint))
}

// Classify asks the model about the image without touching the session.
// Provider and parse failures come back as a result with Err set.
func (uc *ClassifyImageUsecase) Classify(ctx context.Context, session *domain.Session, image Image, hint string) domain.ClassificationResult {
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	start := time.Now()
	content, err := uc.model.Complete(ctx, VisionRequest{
		Prompt:   ClassificationPrompt(hint),
		Image:    image.Data,
		MimeType: mimeType,
	})
	metrics.ClassificationDurationSeconds.WithLabelValues(uc.model.Name()).Observe(metrics.SinceSeconds(start))

	var verdict modelVerdict
	if err == nil {
		uc.log.Debug("classifier answer", zap.String("provider", uc.model.Name()), zap.String("content", content))
		verdict, err = parseVerdict(content)
	}
	if err != nil {
		uc.log.Warn("classification failed", zap.String("namespace", session.Namespace), zap.Error(err))
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		return domain.ClassificationResult{
			IsValid:     false,
			Category:    domain.CategoryError,
			Description: FailureMessage(err),
			Err:         err,
		}
	}

	result := domain.ClassificationResult{
		IsValid:           verdict.IsValid,
		IsAiGenerated:     verdict.IsAiGenerated,
		IsSevereViolation: verdict.IsSevereViolation,
		Category:          domain.ParseCategory(verdict.Category),
		Description:       verdict.Description,
	}

	switch {
	case result.IsAiGenerated:
		result.IsValid = false
		result.Description = msgAIGenerated
		metrics.ClassificationsTotal.WithLabelValues("ai_generated").Inc()
	case result.IsSevereViolation:
		result.Category = domain.CategoryPolice
		result.IsValid = true
		result.Description = msgSevereViolation
		metrics.ClassificationsTotal.WithLabelValues("severe_violation").Inc()
	case !result.IsValid:
		metrics.ClassificationsTotal.WithLabelValues("invalid").Inc()
	default:
		metrics.ClassificationsTotal.WithLabelValues("approved").Inc()
	}

	uc.log.Info("image classified",
		zap.String("namespace", session.Namespace),
		zap.String("category", result.Category.String()),
		zap.Bool("valid", result.IsValid),
		zap.Bool("ai_generated", result.IsAiGenerated),
		zap.Bool("severe_violation", result.IsSevereViolation),
	)
	return result
}

// Settle applies the warning policy for a verdict returned by Classify and
// saves the session. A failed or approved result leaves the counter alone.
func (uc *ClassifyImageUsecase) Settle(ctx context.Context, session *domain.Session, result domain.ClassificationResult) (domain.ClassificationResult, error) {
	switch {
	case result.Failed():
		result.WarningCount = session.Warnings

	case result.IsAiGenerated:
		w, err := uc.warnings.Apply(ctx, session, 1)
		if err != nil {
			return domain.ClassificationResult{}, err
		}
		result.WarningCount = w.Warnings
		result.PointsDeducted = w.PointsDeducted

	case result.IsSevereViolation:
		w, err := uc.warnings.Apply(ctx, session, domain.WarningThreshold)
		if err != nil {
			return domain.ClassificationResult{}, err
		}
		result.WarningCount = w.Warnings
		result.PointsDeducted = true

	case !result.IsValid:
		w, err := uc.warnings.Apply(ctx, session, 1)
		if err != nil {
			return domain.ClassificationResult{}, err
		}
		result.WarningCount = w.Warnings
		result.PointsDeducted = w.PointsDeducted
		if w.PointsDeducted {
			result.Description = msgThreeStrikes
		} else {
			result.Description = fmt.Sprintf("❌ %s - Warning %d/%d", result.Description, w.Warnings, domain.WarningThreshold)
		}

	default:
		result.WarningCount = session.Warnings
	}
	return result, nil
}

// FailureMessage turns a classifier failure into the text shown to the user.
func FailureMessage(err error) string {
	if err == nil {
		return msgFailed
	}

	switch {
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case 401:
			return msgInvalidAPIKey
		case 429:
			return msgRateLimited
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return msgNetwork
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "401") || strings.Contains(lower, "unauthorized"):
		return msgInvalidAPIKey
	case strings.Contains(msg, "429") || strings.Contains(lower, "rate"):
		return msgRateLimited
	case strings.Contains(lower, "network") || strings.Contains(lower, "fetch"):
		return msgNetwork
	case msg != "":
		return "Error: " + msg
	}
	return msgFailed
}
