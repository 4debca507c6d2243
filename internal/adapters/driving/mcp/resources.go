package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for traceq resources.
	uriScheme = "traceq://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing journeys.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "journeys",
		Name:        "journeys",
		Description: "List of all business journeys",
		MIMEType:    "application/json",
	}, s.handleJourneysResource)

	// Template for a journey's version timeline.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "journeys/{journey}/timeline",
		Name:        "journey-timeline",
		Description: "Document versions of a journey, oldest first",
		MIMEType:    "application/json",
	}, s.handleTimelineResource)

	// Template for the extracted text of one version.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "journeys/{journey}/versions/{versionId}",
		Name:        "version-content",
		Description: "Extracted text of a specific document version",
		MIMEType:    "text/plain",
	}, s.handleVersionContentResource)
}

// handleJourneysResource returns a list of all journeys.
func (s *Server) handleJourneysResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Journeys == nil {
		return jsonResource(req.Params.URI, "[]"), nil
	}

	journeys, err := s.ports.Journeys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing journeys: %w", err)
	}

	type journeyInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsDefault   bool   `json:"is_default"`
		URI         string `json:"uri"`
	}

	infos := make([]journeyInfo, len(journeys))
	for i := range journeys {
		infos[i] = journeyInfo{
			Name:        journeys[i].Name,
			Description: journeys[i].Description,
			IsDefault:   journeys[i].IsDefault,
			URI:         uriScheme + "journeys/" + url.PathEscape(journeys[i].Name) + "/timeline",
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling journeys: %w", err)
	}
	return jsonResource(req.Params.URI, string(data)), nil
}

// handleTimelineResource returns the versions of one journey.
func (s *Server) handleTimelineResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Versions == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	journey, rest := splitJourneyURI(req.Params.URI)
	if journey == "" || rest != "timeline" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	versions, err := s.ports.Versions.Timeline(ctx, journey)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	data, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling versions: %w", err)
	}
	return jsonResource(req.Params.URI, string(data)), nil
}

// handleVersionContentResource returns the reconstructed text of a version.
func (s *Server) handleVersionContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Assembler == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	journey, rest := splitJourneyURI(req.Params.URI)
	versionID, ok := strings.CutPrefix(rest, "versions/")
	if journey == "" || !ok || versionID == "" || strings.Contains(versionID, "/") {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	bundle, _, err := s.ports.Assembler.AssembleForVersions(ctx, journey, versionID, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading version: %w", err)
	}
	text, err := bundle.Reconstruct()
	if err != nil {
		return nil, fmt.Errorf("reconstructing version: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

func jsonResource(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// splitJourneyURI splits traceq://journeys/{journey}/{rest} into the
// unescaped journey name and rest.
func splitJourneyURI(uri string) (journey, rest string) {
	const prefix = uriScheme + "journeys/"

	tail, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return "", ""
	}
	escaped, rest, ok := strings.Cut(tail, "/")
	if !ok {
		return "", ""
	}
	journey, err := url.PathUnescape(escaped)
	if err != nil {
		return "", ""
	}
	return journey, rest
}
