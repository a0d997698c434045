package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	appfs "github.com/trezcool/studyhub/fs"
)

const emailTmplDir = "assets/templates/email"

// emailTemplates holds the parsed templates by name (file name without extension).
var emailTemplates = struct {
	sync.RWMutex
	text map[string]*texttmpl.Template
	html map[string]*htmltmpl.Template
}{}

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // plain text, used instead of a template

		TemplateName string // without extension
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages without blocking on delivery. Failures are logged.
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// Render fills TextContent and HTMLContent from BodyStr or the named templates.
// A template missing in one format leaves that content empty.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	data := ContextData{AppName: Conf.AppName, FrontendBaseURL: Conf.FrontendBaseURL, Data: m.TemplateData}
	emailTemplates.RLock()
	txt := emailTemplates.text[m.TemplateName]
	html := emailTemplates.html[m.TemplateName]
	emailTemplates.RUnlock()

	var buf bytes.Buffer
	if txt != nil && m.BodyStr == "" {
		if err := txt.Execute(&buf, data); err != nil {
			return err
		}
		m.TextContent = buf.String()
	}
	if html != nil {
		buf.Reset()
		if err := html.Execute(&buf, data); err != nil {
			return err
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// ParseEmailTemplates parses the embedded email templates, each one on top of its `_base` layout.
// Templates that fail to parse are logged and skipped.
func ParseEmailTemplates(logger Logger) {
	fps, err := fs.Glob(appfs.FS, path.Join(emailTmplDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
	}

	option := "missingkey=default"
	if Conf.Debug || Conf.TestMode {
		option = "missingkey=error"
	}
	text := make(map[string]*texttmpl.Template)
	html := make(map[string]*htmltmpl.Template)
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)

		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(appfs.FS, path.Join(emailTmplDir, "_base.txt"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
				continue
			}
			text[name] = tmpl.Option(option)
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(appfs.FS, path.Join(emailTmplDir, "_base.gohtml"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
				continue
			}
			html[name] = tmpl.Option(option)
		}
	}

	emailTemplates.Lock()
	emailTemplates.text, emailTemplates.html = text, html
	emailTemplates.Unlock()
}
