// package download fetches audio for resolved tracks and embeds their metadata.
//
// A [Pipeline] picks the first downloadable source of a track (a Bandcamp stream, then YouTube
// through yt-dlp), writes it under a filesystem-safe name and hands the file to a [Tagger].
package download
