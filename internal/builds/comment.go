package builds

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"pr-build-watcher/internal/gateway"

	"go.uber.org/zap"
)

// The digest signature appended to bot comments. Kept byte-compatible with
// comments written by earlier deployments so they are detected and reused.
const signaturePrefix = "\nmd5 hash: "

var signaturePattern = regexp.MustCompile(`md5 hash: ([a-f0-9]{32})`)

// CommentUpserter maintains a single bot-authored comment per pull request,
// updating it only when the content digest changes.
type CommentUpserter struct {
	log *zap.SugaredLogger
	gw  gateway.Gateway
}

// NewCommentUpserter creates a comment upserter.
func NewCommentUpserter(log *zap.SugaredLogger, gw gateway.Gateway) *CommentUpserter {
	return &CommentUpserter{log: log.Named("comments"), gw: gw}
}

// Upsert posts body as the bot's comment on the pull request. Re-running
// with identical content issues zero additional writes.
func (u *CommentUpserter) Upsert(ctx context.Context, number int, body string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	sum := md5.Sum([]byte(body))
	digest := hex.EncodeToString(sum[:])
	signed := body + signaturePrefix + digest

	comments, err := u.gw.ListComments(ctx, number)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	me, err := u.gw.BotLogin(ctx)
	if err != nil {
		return fmt.Errorf("resolve own login: %w", err)
	}

	for _, c := range comments {
		if c.AuthorLogin != me {
			continue
		}
		if prevDigest(c.Body) == digest {
			u.log.Debugw("comment body unchanged", "number", number)
			return nil
		}
		if err := u.gw.UpdateComment(ctx, c.ID, signed); err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		u.log.Debugw("updated comment body", "number", number)
		return nil
	}

	if err := u.gw.CreateComment(ctx, number, signed); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	u.log.Debugw("posted new comment", "number", number)
	return nil
}

// prevDigest extracts the last embedded signature from a comment body.
func prevDigest(body string) string {
	matches := signaturePattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}
