package portal

const (
	PORTAL_DEST = "org.freedesktop.portal.Desktop"
	PORTAL_PATH = "/org/freedesktop/portal/desktop"

	PORTAL_PREFIX        = "org.freedesktop.portal"
	REQUEST_IFACE        = PORTAL_PREFIX + ".Request"
	REQUEST_PATH_PREFIX  = PORTAL_PATH + "/request/"
	REQUEST_RESPONSE     = "Response"
	REQUEST_SIGNAL       = REQUEST_IFACE + "." + REQUEST_RESPONSE
	REQUEST_METHOD_CLOSE = REQUEST_IFACE + ".Close"

	CAMERA_IFACE                = PORTAL_PREFIX + ".Camera"
	CAMERA_METHOD_ACCESS        = CAMERA_IFACE + ".AccessCamera"
	CAMERA_METHOD_OPEN_PIPEWIRE = CAMERA_IFACE + ".OpenPipeWireRemote"
	CAMERA_PROP_PRESENT         = "IsCameraPresent"

	SCREENSHOT_IFACE             = PORTAL_PREFIX + ".Screenshot"
	SCREENSHOT_METHOD_SCREENSHOT = SCREENSHOT_IFACE + ".Screenshot"
	SCREENSHOT_METHOD_PICK_COLOR = SCREENSHOT_IFACE + ".PickColor"

	WALLPAPER_IFACE           = PORTAL_PREFIX + ".Wallpaper"
	WALLPAPER_METHOD_SET_URI  = WALLPAPER_IFACE + ".SetWallpaperURI"
	WALLPAPER_METHOD_SET_FILE = WALLPAPER_IFACE + ".SetWallpaperFile"

	PROP_VERSION = "version"

	OPT_HANDLE_TOKEN = "handle_token"
	tokenPrefix      = "odio_"
)
