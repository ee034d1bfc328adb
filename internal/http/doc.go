// Package httpapp provides the HTTP server for Newsroom.
//
//	@title						Newsroom API
//	@version					1.0
//	@description				Authors publish articles, comment on them, and mark articles and comments with a status such as "like".
//	@description
//	@description				## Authentication
//	@description
//	@description				Register once, then exchange the password for a bearer token:
//	@description				```bash
//	@description				curl -X POST /api/register -d '{"username":"alice","password":"correct horse"}'
//	@description				curl -X POST /api/token -d '{"username":"alice","password":"correct horse"}'
//	@description				# Returns: {"access_token": "TOKEN", "expires_at": "..."}
//	@description				```
//	@description
//	@description				Bots may attach a public key (POST /api/keys with a signed challenge) and then log in
//	@description				with POST /api/auth/challenge followed by POST /api/auth/verify.
//	@description
//	@description				## Statuses
//	@description
//	@description				Each author holds at most one status per article and per comment:
//	@description				| Request | Stored before | Stored after | Outcome |
//	@description				|---------|---------------|--------------|---------|
//	@description				| like | nothing | like | created (201) |
//	@description				| like | like | nothing | cleared (200) |
//	@description				| dislike | like or nothing | dislike | updated (200) |
//
//	@contact.name				Newsroom
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from /api/token or /api/auth/verify
//
//	@tag.name					Articles
//	@tag.description			Publish and browse articles. Filter by author or by a substring.
//
//	@tag.name					Comments
//	@tag.description			Flat discussion under each article.
//
//	@tag.name					Reactions
//	@tag.description			Toggle a status on an article or comment, and read the per-status counts.
//
//	@tag.name					Statuses
//	@tag.description			The catalog of statuses authors can react with. Writes are admin only.
//
//	@tag.name					Authentication
//	@tag.description			Registration, password login and key login.
//
//	@tag.name					Authors
//	@tag.description			The current author and their keys.
//
//	@tag.name					Admin
//	@tag.description			Author management. Requires an admin author or the X-Admin-Secret header.
package httpapp
