// Package catalog turns catalog track ids into queueable tracks.
//
// [Client] talks to a metadata proxy over HTTP:
//   - GET /tracks/{id} : title, artists and availability
//   - GET /tracks/{id}/download-info : direct links with codec and bitrate
//
// Download infos are ranked by bitrate, best first, and become the track's candidates.
// [ExtractIDs] pulls ids out of free text so callers can accept pasted links.
package catalog
