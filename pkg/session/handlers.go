package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/backkem/mlle/pkg/crypto"
	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/protocol"
)

// EncryptedExtension marks files that are decrypted before they are served.
const EncryptedExtension = ".moc"

// authorize checks the peer key and the global feature once per session.
func (s *session) authorize(ctx context.Context) {
	cfg := s.server.config

	if cfg.Authorizer != nil {
		if err := cfg.Authorizer.Authorize(s.ch.PeerKey()); err != nil {
			s.warnf("tool rejected: %v", err)
			s.ctx.deny(&ProtocolError{Code: protocol.ErrorToolNotAllowed, Message: msgToolNotAllowed})
			return
		}
	}

	if cfg.GlobalFeature == "" {
		return
	}
	backend, err := s.ctx.licenseBackend(cfg.LicenseFactory)
	if err != nil {
		s.ctx.deny(&ProtocolError{Code: protocol.ErrorLicense, Message: fmt.Sprintf(msgLicenseSetup, err)})
		return
	}
	ok, reason, err := backend.CheckoutFeature(ctx, cfg.GlobalFeature)
	switch {
	case err != nil:
		s.ctx.deny(&ProtocolError{Code: protocol.ErrorLicense, Message: fmt.Sprintf(msgLicenseInternal, err)})
	case !ok:
		s.ctx.deny(&ProtocolError{Code: protocol.ErrorLicense, Message: reason})
	}
}

func (s *session) handleVersion(cmd *protocol.Command) (bool, error) {
	if cmd.Number < protocol.MinVersion {
		return false, s.replyError(protocol.ErrorVersionTooLow, fmt.Sprintf(msgVersionTooLow, protocol.MinVersion))
	}
	return true, s.w.WriteNumber(protocol.CmdVersion, protocol.MaxVersion)
}

func (s *session) handleTools() error {
	s.logf("tools announced")
	return s.w.WriteSimple(protocol.CmdYes)
}

// handleLib records the library path. The reply is always YES; a bad path
// is cached as a denial for later requests.
func (s *session) handleLib(cmd *protocol.Command) error {
	if perr := s.setLibPath(string(cmd.Data)); perr != nil {
		s.logf("library path rejected: %s", perr.Message)
		s.ctx.deny(perr)
	}
	return s.w.WriteSimple(protocol.CmdYes)
}

func (s *session) setLibPath(p string) *ProtocolError {
	if p == "" {
		return &ProtocolError{Code: protocol.ErrorFileNotFound, Message: msgLibPathMissing}
	}
	p = TrimSeparators(p)

	if base := s.server.config.BaseDir; base != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		rel, err := filepath.Rel(base, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &ProtocolError{Code: protocol.ErrorFileNotFound, Message: msgLibPathOutside}
		}
	}

	info, err := os.Stat(p)
	if err != nil {
		return &ProtocolError{Code: protocol.ErrorFileNotFound, Message: msgLibPathNotExist}
	}
	if !info.IsDir() {
		return &ProtocolError{Code: protocol.ErrorFileNotFound, Message: msgLibPathNotDir}
	}

	s.ctx.LibPath = p
	s.ctx.Engine = keymask.NewEngine(keymask.Config{
		Source:        keymask.DirSource{Root: p},
		LoggerFactory: s.server.config.LoggerFactory,
	})
	s.logf("library %s", p)
	return nil
}

// TrimSeparators removes trailing '/' and '\' from p, keeping at least one
// character.
func TrimSeparators(p string) string {
	for len(p) > 1 && (p[len(p)-1] == '/' || p[len(p)-1] == '\\') {
		p = p[:len(p)-1]
	}
	return p
}

func (s *session) handleFeature(ctx context.Context, cmd *protocol.Command) error {
	if !s.ctx.Authorized() {
		return s.replyDenial()
	}

	backend, err := s.ctx.licenseBackend(s.server.config.LicenseFactory)
	if err != nil {
		return s.replyError(protocol.ErrorLicense, fmt.Sprintf(msgLicenseSetup, err))
	}

	feature := string(cmd.Data)
	ok, reason, err := backend.CheckoutFeature(ctx, feature)
	if err != nil {
		return s.replyError(protocol.ErrorLicense, fmt.Sprintf(msgLicenseInternal, err))
	}
	if !ok {
		s.logf("feature %s denied: %s", feature, reason)
		return s.w.WriteLength(protocol.CmdNo, []byte(reason))
	}
	s.logf("feature %s checked out", feature)
	return s.w.WriteSimple(protocol.CmdYes)
}

func (s *session) handleReturnFeature(ctx context.Context, cmd *protocol.Command) error {
	backend, err := s.ctx.licenseBackend(s.server.config.LicenseFactory)
	if err != nil {
		return s.replyError(protocol.ErrorLicense, fmt.Sprintf(msgLicenseSetup, err))
	}

	feature := string(cmd.Data)
	ok, reason, err := backend.CheckinFeature(ctx, feature)
	if err != nil {
		return s.replyError(protocol.ErrorLicense, fmt.Sprintf(msgLicenseInternal, err))
	}
	if !ok {
		if reason == "" {
			reason = fmt.Sprintf(msgCheckinFailed, feature)
		}
		return s.replyError(protocol.ErrorLicense, reason)
	}
	return s.w.WriteSimple(protocol.CmdYes)
}

func (s *session) handleFile(ctx context.Context, cmd *protocol.Command) error {
	if !s.ctx.Authorized() {
		return s.replyDenial()
	}
	if s.ctx.LibPath == "" {
		return s.replyError(protocol.ErrorFileNotFound, msgLibPathMissing)
	}

	rel := string(cmd.Data)
	clean, err := CleanRelPath(rel)
	if err != nil {
		return s.replyError(protocol.ErrorFileNotFound, fmt.Sprintf(msgFileInvalid, rel))
	}

	data, err := os.ReadFile(filepath.Join(s.ctx.LibPath, filepath.FromSlash(clean)))
	if err != nil {
		s.logf("read %s: %v", clean, err)
		return s.replyError(protocol.ErrorFileIO, fmt.Sprintf(msgFileRead, rel))
	}

	if !strings.EqualFold(path.Ext(clean), EncryptedExtension) {
		s.server.config.Observer.FileServed(false, len(data))
		return s.w.WriteLength(protocol.CmdFileCont, data)
	}

	key, err := s.server.config.Secret.LibraryKey(ctx)
	if err != nil {
		s.warnf("library key: %v", err)
		return s.replyError(protocol.ErrorOther, msgKeyUnavailable)
	}
	plain, err := s.ctx.Engine.Decrypt(clean, key, data)
	clear(key[:])
	if err != nil {
		s.warnf("decrypt %s: %v", clean, err)
		if !isCryptoError(err) {
			return s.replyError(protocol.ErrorFileIO, fmt.Sprintf(msgFileRead, rel))
		}
		return s.replyError(protocol.ErrorCrypto, fmt.Sprintf(msgFileDecrypt, rel))
	}
	defer clear(plain)

	s.server.config.Observer.FileServed(true, len(plain))
	return s.w.WriteLength(protocol.CmdFileCont, plain)
}

// isCryptoError reports whether err comes from a blob or marker that failed
// to decrypt, as opposed to a marker that could not be read.
func isCryptoError(err error) bool {
	return errors.Is(err, crypto.ErrAuthentication) ||
		errors.Is(err, crypto.ErrBlobTooShort) ||
		errors.Is(err, keymask.ErrMarkerTooShort)
}

// CleanRelPath validates a library-relative path and returns it with '/'
// separators. Absolute paths and paths with ".." elements are rejected.
func CleanRelPath(rel string) (string, error) {
	p := strings.ReplaceAll(rel, `\`, "/")
	if p == "" || strings.HasPrefix(p, "/") || filepath.VolumeName(rel) != "" ||
		(len(p) >= 2 && p[1] == ':') {
		return "", ErrInvalidPath
	}
	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return "", ErrInvalidPath
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", ErrInvalidPath
	}
	return clean, nil
}
