package mcpserver

// FormatContract describes the mind map document format and the rules the
// editing tools enforce.
const FormatContract = `# Mind Map Format Contract

A mind map is a JSON document owned by one user.

## Document

` + "```" + `json
{
  "id": "generated",
  "title": "Project kickoff",
  "description": "optional, up to 2000 characters",
  "category": "Business",
  "isPublic": false,
  "template": false,
  "tags": ["planning"],
  "nodes": [
    {"id": "1", "x": 400, "y": 200, "text": "Goal", "color": "#ec4899", "size": "large"},
    {"id": "2", "x": 200, "y": 100, "text": "Scope", "color": "#3b82f6", "size": "medium"}
  ],
  "connections": [
    {"id": "c1", "from": "1", "to": "2"}
  ]
}
` + "```" + `

## Rules

1. **title** is required and must not be blank (at most 200 characters).
2. **category** is one of Business, Education, Creative, Personal, Other. It defaults to Other.
3. **tags** are trimmed and de-duplicated; blank tags are dropped.
4. **Node size** is small (80x40), medium (100x50) or large (120x60). x and y are the
   top-left corner on the canvas.
5. **Node color** is a hex color. The editor palette is
   #ec4899 #6b7280 #000000 #3b82f6 #10b981 #f59e0b #ef4444 #8b5cf6.
6. **Connections** are directed. Both endpoints must name nodes in the same document and a
   node cannot connect to itself. Deleting a node deletes its connections.
7. Only the owner can read a private mind map or change any mind map. Templates are
   read-only; create a new mind map from one with create_mindmap and template_id.

## Editing

Use add_node, connect_nodes, rename_node and delete_node for small edits. Each call
re-reads the document, applies the edit and saves it, so ids returned by one call stay
valid for the next.
`
