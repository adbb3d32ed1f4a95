package service

import (
	"context"
	"path"
	"strings"

	"vibesnap/internal/prototype/model"
	"vibesnap/pkg/htmldoc"
)

// ClassifyImport sorts uploaded files into import parts by extension. single
// is the standalone-document slot and must be an .html file; files with any
// other extension in the split set are ignored. When several files share an
// extension the last one wins.
func (s *PrototypeService) ClassifyImport(single *model.ImportFile, files []model.ImportFile) (model.ImportRequest, error) {
	var req model.ImportRequest
	if single != nil {
		if strings.ToLower(path.Ext(single.Name)) != ".html" {
			return model.ImportRequest{}, ErrNotHTMLFile
		}
		req.Single = single.Content
	}

	for _, f := range files {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".html":
			req.HTML = f.Content
		case ".css":
			req.CSS = f.Content
		case ".js":
			req.JS = f.Content
		}
	}
	return req, nil
}

// AssembleImport prefers the split parts when an html part is present and
// falls back to the standalone document.
func (s *PrototypeService) AssembleImport(req model.ImportRequest) model.ImportResponse {
	var assembled string
	switch {
	case req.HTML != "":
		assembled = htmldoc.Assemble(req.HTML, req.CSS, req.JS)
	case req.Single != "":
		assembled = htmldoc.Normalize(req.Single)
	}

	return model.ImportResponse{
		Assembled: assembled,
		Status: model.ImportStatus{
			Single: req.Single != "",
			HTML:   req.HTML != "",
			CSS:    req.CSS != "",
			JS:     req.JS != "",
		},
	}
}

// UseImport assembles the import and makes it the user's draft.
func (s *PrototypeService) UseImport(ctx context.Context, userID string, req model.ImportRequest) (model.DraftResponse, error) {
	assembled := s.AssembleImport(req).Assembled
	if strings.TrimSpace(assembled) == "" {
		return model.DraftResponse{}, ErrNothingToLoad
	}
	return s.SaveDraft(ctx, userID, assembled)
}
