// Package domain contains the entities of the community-engagement service:
// users, the interest tags they follow, municipalities, events and the
// per-tag mailing lists. The types are free of infrastructure concerns so they
// can be shared by services, storage backends and the HTTP layer.
package domain
