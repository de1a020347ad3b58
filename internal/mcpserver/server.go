// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes mind-map tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mindmaps/internal/editor"
	"github.com/starford/mindmaps/internal/mindmap"
	"github.com/starford/mindmaps/internal/models"
)

// FormatURI is the resource holding FormatContract.
const FormatURI = "mindmaps://format"

// ErrNoUser is returned by New when no acting user is configured.
var ErrNoUser = errors.New("mcpserver: acting user id is required")

// Server wraps the MCP server with mind-map tools. Every call acts as one
// configured user.
type Server struct {
	mcp    *server.MCPServer
	svc    *mindmap.Service
	userID string
}

// New creates a new MCP server with all tools registered.
func New(svc *mindmap.Service, userID string) (*Server, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	s := &Server{svc: svc, userID: userID}

	s.mcp = server.NewMCPServer(
		"Mind Maps",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_public_mindmaps",
		mcp.WithDescription("List public mind maps from the gallery, newest first."),
		mcp.WithString("category", mcp.Description("Business, Education, Creative, Personal, Other or All")),
		mcp.WithString("search", mcp.Description("Case-insensitive match on title, description or tags")),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100")),
	), s.listPublic)

	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the public templates new mind maps can start from."),
	), s.listTemplates)

	s.mcp.AddTool(mcp.NewTool("list_my_mindmaps",
		mcp.WithDescription("List mind maps owned by the acting user, most recently updated first."),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100")),
	), s.listMine)

	s.mcp.AddTool(mcp.NewTool("read_mindmap",
		mcp.WithDescription("Read a mind map document as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mind map id")),
	), s.readMindMap)

	s.mcp.AddTool(mcp.NewTool("create_mindmap",
		mcp.WithDescription("Create a mind map owned by the acting user. "+
			"Read the format contract first via get_format_contract or the "+FormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Non-blank title")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("category", mcp.Description("Business, Education, Creative, Personal or Other")),
		mcp.WithBoolean("public", mcp.Description("Publish to the gallery")),
		mcp.WithString("template_id", mcp.Description("Start from this template's nodes and connections")),
	), s.createMindMap)

	s.mcp.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node centered on (x, y)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mind map id")),
		mcp.WithString("text", mcp.Description("Node label")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Center x on the canvas")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Center y on the canvas")),
		mcp.WithString("color", mcp.Description("Hex color, e.g. #3b82f6")),
		mcp.WithString("size", mcp.Description("small, medium or large")),
	), s.addNode)

	s.mcp.AddTool(mcp.NewTool("connect_nodes",
		mcp.WithDescription("Connect two existing nodes with a directed edge."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mind map id")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target node id")),
	), s.connectNodes)

	s.mcp.AddTool(mcp.NewTool("rename_node",
		mcp.WithDescription("Replace a node's label."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mind map id")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New label")),
	), s.renameNode)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and every connection touching it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mind map id")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the mind map document format contract."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Mind Map Format Contract",
			mcp.WithResourceDescription("Document format and editing rules for mind maps."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s, nil
}

// Serve runs the stdio transport over in and out until ctx is cancelled
// or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPublic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.svc.ListPublic(ctx, mindmap.PublicFilter{
		PageRequest: pageRequest(req),
		Category:    req.GetString("category", ""),
		Search:      req.GetString("search", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page)
}

func (s *Server) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tpls, err := s.svc.ListTemplates(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tpls)
}

func (s *Server) listMine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.svc.ListMine(ctx, s.userID, pageRequest(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page)
}

func (s *Server) readMindMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, id, s.userID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) createMindMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d := models.MindMapDraft{
		Title:       title,
		Description: req.GetString("description", ""),
		Category:    models.Category(req.GetString("category", "")),
		IsPublic:    req.GetBool("public", false),
	}
	if tplID := req.GetString("template_id", ""); tplID != "" {
		tpl, err := s.svc.Get(ctx, tplID, s.userID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !tpl.Template {
			return mcp.NewToolResultError(fmt.Sprintf("not a template: %s", tplID)), nil
		}
		d.Nodes, d.Connections = tpl.Nodes, tpl.Connections
		d.Tags = tpl.Tags
		if d.Category == "" {
			d.Category = tpl.Category
		}
	} else {
		g := editor.SeedGraph()
		d.Nodes, d.Connections = g.Nodes(), g.Connections()
	}
	m, err := s.svc.Create(ctx, d, s.userID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) addNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := req.GetString("text", "")
	color := req.GetString("color", "")
	size := models.Size(req.GetString("size", ""))
	if color != "" && !models.ValidColor(color) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid color: %s", color)), nil
	}
	if size != "" && !size.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid size: %s", size)), nil
	}

	var added models.Node
	return s.edit(ctx, req, func(ed *editor.Editor) error {
		before := ed.Graph().Len()
		if color != "" {
			ed.Dispatch(editor.SelectColor{Color: color})
		}
		ed.Dispatch(editor.AddNodeAt{X: x, Y: y})
		nodes := ed.Graph().Nodes()
		if len(nodes) == before {
			return errors.New("node was not added")
		}
		added = nodes[len(nodes)-1]
		if text != "" {
			ed.Dispatch(editor.SetNodeText{ID: added.ID, Text: text})
		}
		if size != "" {
			ed.Dispatch(editor.SetNodeSize{ID: added.ID, Size: size})
		}
		added, _ = ed.Graph().Node(added.ID)
		return nil
	}, func() any { return added })
}

func (s *Server) connectNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if from == to {
		return mcp.NewToolResultError("cannot connect a node to itself"), nil
	}

	var conn models.Connection
	return s.edit(ctx, req, func(ed *editor.Editor) error {
		if err := requireNodes(ed.Graph(), from, to); err != nil {
			return err
		}
		before := len(ed.Graph().Connections())
		ed.Dispatch(editor.ToggleConnect{})
		ed.Dispatch(editor.NodeClick{ID: from})
		ed.Dispatch(editor.NodeClick{ID: to})
		conns := ed.Graph().Connections()
		if len(conns) == before {
			return errors.New("connection was not created")
		}
		conn = conns[len(conns)-1]
		return nil
	}, func() any { return conn })
}

func (s *Server) renameNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var node models.Node
	return s.edit(ctx, req, func(ed *editor.Editor) error {
		if err := requireNodes(ed.Graph(), nodeID); err != nil {
			return err
		}
		ed.Dispatch(editor.SetNodeText{ID: nodeID, Text: text})
		node, _ = ed.Graph().Node(nodeID)
		return nil
	}, func() any { return node })
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, req, func(ed *editor.Editor) error {
		if err := requireNodes(ed.Graph(), nodeID); err != nil {
			return err
		}
		ed.Dispatch(editor.DeleteNode{ID: nodeID})
		return nil
	}, func() any { return map[string]string{"deleted": nodeID} })
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}

// edit loads the document named by the "id" argument into an editor, runs
// fn against it and saves the resulting graph. The result is whatever out
// returns after a successful save.
func (s *Server) edit(ctx context.Context, req mcp.CallToolRequest, fn func(*editor.Editor) error, out func() any) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, id, s.userID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g := editor.NewGraph(m.Nodes, m.Connections)
	ed := editor.New(editor.WithBounds(editor.FitBounds(g, 0)))
	ed.Dispatch(editor.Load{Graph: g})

	if err := fn(ed); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	nodes, conns := ed.Graph().Nodes(), ed.Graph().Connections()
	if _, err := s.svc.Update(ctx, id, models.MindMapPatch{Nodes: &nodes, Connections: &conns}, s.userID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out())
}

func requireNodes(g editor.Graph, ids ...string) error {
	for _, id := range ids {
		if _, ok := g.Node(id); !ok {
			return fmt.Errorf("node not found: %s", id)
		}
	}
	return nil
}

func pageRequest(req mcp.CallToolRequest) mindmap.PageRequest {
	return mindmap.PageRequest{
		Page:  req.GetInt("page", 0),
		Limit: req.GetInt("limit", 0),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
