package balloon

import "github.com/matheus3301/imex/internal/keyedarchive"

// decodeURLFamily interprets a com.apple.messages.URLBalloonProvider
// payload. The URL provider is shared by several first-party experiences:
// the payload's specialization keys decide whether it is a music share, a
// collaboration invite, or a plain link preview.
func decodeURLFamily(bundleID string, root *keyedarchive.Node) Balloon {
	meta := urlBody(root)
	if meta == nil {
		return UnknownBalloon{BundleID: bundleID}
	}
	if music, ok := decodeMusic(meta); ok {
		return music
	}
	if collab, ok := decodeCollaboration(meta); ok {
		return collab
	}
	return URLPreview{
		URL:      urlOf(meta),
		Title:    meta.StringKey("title"),
		Summary:  meta.StringKey("summary"),
		SiteName: meta.StringKey("siteName"),
		ImageRef: firstImageRef(meta),
	}
}

// urlBody locates the metadata dictionary. Recent payloads use
// richLinkMetadata; some social integrations store it under metadata.
func urlBody(root *keyedarchive.Node) *keyedarchive.Node {
	if meta := root.Key("richLinkMetadata"); meta != nil {
		return meta
	}
	return root.Key("metadata")
}

// urlOf returns the served URL, falling back to the original one.
func urlOf(meta *keyedarchive.Node) string {
	if u := meta.StringKey("URL"); u != "" {
		return u
	}
	if u := meta.StringKey("URL", "URL"); u != "" {
		return u
	}
	if u := meta.StringKey("originalURL"); u != "" {
		return u
	}
	return meta.StringKey("originalURL", "URL")
}

// firstImageRef pulls the first preview image URL, if any. The images key
// nests a dictionary holding an array of { URL: { URL: string } } items.
func firstImageRef(meta *keyedarchive.Node) string {
	images := meta.Key("images", "images")
	if images == nil {
		images = meta.Key("images")
	}
	arr, err := images.Array()
	if err != nil || len(arr) == 0 {
		return ""
	}
	first := arr[0]
	if u := first.StringKey("URL", "URL"); u != "" {
		return u
	}
	return first.StringKey("URL")
}

// decodeMusic matches the Apple Music specialization; an album key is what
// separates it from other rich links.
func decodeMusic(meta *keyedarchive.Node) (AppMusic, bool) {
	spec := meta.Key("specialization")
	if spec == nil || spec.StringKey("album") == "" {
		return AppMusic{}, false
	}
	return AppMusic{
		Artist:     spec.StringKey("artist"),
		Album:      spec.StringKey("album"),
		Track:      spec.StringKey("name"),
		URL:        urlOf(meta),
		PreviewURL: spec.StringKey("previewURL"),
	}, true
}

// decodeCollaboration matches the Rich Collaboration specialization.
func decodeCollaboration(meta *keyedarchive.Node) (Collaboration, bool) {
	collab := meta.Key("collaborationMetadata")
	if collab == nil {
		return Collaboration{}, false
	}
	url := collab.StringKey("collaborationIdentifier")
	if url == "" {
		url = urlOf(meta)
	}
	app := meta.StringKey("specialization2", "specialization", "application")
	if app == "" {
		app = collab.StringKey("containerSetupInfo", "containerID", "ContainerIdentifier")
	}
	return Collaboration{
		Title: collab.StringKey("title"),
		URL:   url,
		App:   app,
	}, true
}
