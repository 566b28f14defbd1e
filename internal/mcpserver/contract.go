package mcpserver

// Instructions is sent to clients during initialization.
const Instructions = `This server gives semantic access to a Markdown notes vault (knowledge bases, meeting notes, code snippets, todo lists, journals, project documentation).

Use search_notes to find notes by meaning, get_note to read one in full, list_notes to browse by folder, tag or date, and analyze_connections to discover related notes. index_stats reports index health. The search and fetch tools return JSON for connector-style clients.

Read the vaultvec://guide resource for the note format and query syntax.`

// GuideURI is the URI of the Guide resource.
const GuideURI = "vaultvec://guide"

// Guide describes how notes are read and how queries are interpreted.
const Guide = `# vaultvec Guide

## How notes are read

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – defaults to the file name
tags: [planning, q3]               # OPTIONAL – list or dash items
status: draft                      # OPTIONAL – extra keys are kept as metadata
---

Body text in standard Markdown. Inline #tags are collected too.
` + "```" + `

1. Only ` + "`.md`" + ` files are indexed. Dot-directories and ` + "`node_modules`" + ` are skipped.
2. The embedding input is the title, a blank line, then the body.
3. Malformed front-matter does not block indexing: the whole file becomes the body.
4. Paths are normalized: backslashes become slashes, ` + "`..`" + ` segments and
   leading ` + "`/`, `~`, `.`" + ` are removed, and control or shell characters are rejected.

## Query syntax

- Plain text is matched by meaning, not by keywords.
- Append ` + "`--QDF=<0-5>`" + ` to ask for fresh results. Levels 3 to 5 boost notes
  modified in the last 90, 60 or 30 days. The marker is removed before embedding.
- ` + "`minScore`" + ` (0 to 1) drops weak matches; ` + "`tags`" + ` keeps notes with any listed tag.
- ` + "`sortBy`" + ` is relevance (default), createdAt or modifiedAt (newest first).
`
