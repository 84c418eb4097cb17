package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"pr-build-watcher/internal/entities"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerSignature = "X-Hub-Signature-256"
	signatureScheme = "sha256="
)

type message struct {
	Msg string `json:"message"`
}

type userPayload struct {
	Login string `json:"login"`
	Email string `json:"email"`
}

type refPayload struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type prPayload struct {
	Number    int         `json:"number"`
	Title     string      `json:"title"`
	HTMLURL   string      `json:"html_url"`
	State     string      `json:"state"`
	UpdatedAt time.Time   `json:"updated_at"`
	Merged    bool        `json:"merged"`
	Mergeable *bool       `json:"mergeable"`
	Head      *refPayload `json:"head"`
	Base      *refPayload `json:"base"`
	User      *userPayload `json:"user"`
}

type pullRequestEvent struct {
	Action      string     `json:"action"`
	Number      int        `json:"number"`
	PullRequest *prPayload `json:"pull_request"`
}

type issueCommentEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int       `json:"number"`
		PullRequest *struct{} `json:"pull_request"`
	} `json:"issue"`
	Comment struct {
		Body string      `json:"body"`
		User userPayload `json:"user"`
	} `json:"comment"`
}

// PostWebhook verifies and dispatches one webhook delivery.
func (h *Handler) PostWebhook(c *fiber.Ctx) error {
	event := c.Get(headerEvent)
	if event == "" {
		return c.Status(http.StatusNotFound).JSON(message{"missing event header"})
	}

	body := c.Body()
	if h.secret != "" {
		if !h.verifySignature(body, c.Get(headerSignature)) {
			return c.Status(http.StatusUnauthorized).JSON(message{"bad signature"})
		}
	}

	switch event {
	case "ping":
		return c.Status(http.StatusOK).JSON(message{"pong"})
	case "pull_request":
		return h.handlePullRequest(c, body)
	case "issue_comment":
		return h.handleIssueComment(c, body)
	default:
		h.log.Debugw("event not supported", "event", event)
		return c.Status(http.StatusNotFound).JSON(message{"event not supported"})
	}
}

func (h *Handler) handlePullRequest(c *fiber.Ctx, body []byte) error {
	var ev pullRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return c.Status(http.StatusBadRequest).JSON(message{"invalid body"})
	}
	if ev.PullRequest == nil {
		return c.Status(http.StatusBadRequest).JSON(message{"missing pull_request"})
	}

	switch ev.Action {
	case "closed":
		h.repo.Remove(ev.Number)
		h.repo.SaveSnapshot(c.Context())
		return c.Status(http.StatusAccepted).JSON(message{"closed"})
	case "opened", "reopened", "synchronize":
		h.repo.ReconcileOne(c.Context(), toRemotePull(ev), false)
		h.repo.SaveSnapshot(c.Context())
		return c.Status(http.StatusAccepted).JSON(message{"accepted"})
	default:
		h.log.Warnw("unknown pull request action", "action", ev.Action, "pull_id", ev.Number)
		return c.Status(http.StatusOK).JSON(message{"ignored"})
	}
}

func (h *Handler) handleIssueComment(c *fiber.Ctx, body []byte) error {
	var ev issueCommentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return c.Status(http.StatusBadRequest).JSON(message{"invalid body"})
	}
	if ev.Action != "created" {
		return c.Status(http.StatusOK).JSON(message{"ignored"})
	}
	if ev.Issue.PullRequest == nil {
		// comment on a plain issue, nothing to rebuild
		return c.Status(http.StatusOK).JSON(message{"ignored"})
	}
	if h.triggerPhrase == "" || !strings.Contains(ev.Comment.Body, h.triggerPhrase) {
		return c.Status(http.StatusOK).JSON(message{"ignored"})
	}

	h.log.Infow("trigger phrase matched",
		"pull_id", ev.Issue.Number, "author", ev.Comment.User.Login)
	if err := h.repo.ForceBuild(c.Context(), ev.Issue.Number); err != nil {
		h.log.Errorw("forced rebuild failed", "pull_id", ev.Issue.Number, "error", err)
		return c.Status(http.StatusBadGateway).JSON(message{"upstream fetch failed"})
	}
	return c.Status(http.StatusAccepted).JSON(message{"build forced"})
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if !strings.HasPrefix(header, signatureScheme) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, signatureScheme)))
}

func toRemotePull(ev pullRequestEvent) entities.RemotePull {
	pr := ev.PullRequest
	up := entities.RemotePull{
		Number:    ev.Number,
		Title:     pr.Title,
		URL:       pr.HTMLURL,
		UpdatedAt: pr.UpdatedAt,
		Merged:    pr.Merged,
		State:     pr.State,
	}
	if up.Number == 0 {
		up.Number = pr.Number
	}
	if pr.Head != nil {
		up.HeadSHA = pr.Head.SHA
		up.SourceBranch = pr.Head.Ref
	}
	if pr.Base != nil {
		up.TargetBranch = pr.Base.Ref
	}
	if pr.User != nil {
		up.AuthorLogin = pr.User.Login
		up.AuthorEmail = pr.User.Email
	}
	switch {
	case pr.Mergeable == nil:
		up.Mergeable = entities.MergeableUnknown
	case *pr.Mergeable:
		up.Mergeable = entities.MergeableYes
	default:
		up.Mergeable = entities.MergeableNo
	}
	return up
}
