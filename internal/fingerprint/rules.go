package fingerprint

// DefaultRules is the built-in identification set, declared in the order
// ties are broken by: an earlier rule keeps a tied score over a later one.
var DefaultRules = []*Rule{
	NewRule("Apache", "http", "Apache", "HTTP Server").
		With(LocationBanner, `Apache`, 40).
		With(LocationBanner, `Apache/([\d.]+)`, 60).
		With(Header("server"), `Apache`, 30),

	NewRule("Nginx", "http", "Nginx", "Nginx").
		With(LocationBanner, `nginx`, 40).
		With(LocationBanner, `nginx/([\d.]+)`, 60).
		With(Header("server"), `nginx`, 30),

	NewRule("Hikvision", "camera", "Hikvision", "IP Camera", "iot", "surveillance").
		With(LocationBanner, `Hikvision`, 50).
		With(LocationBody, `<title>Hikvision</title>`, 60).
		With(Header("server"), `Hikvision`, 50).
		With(Header("server"), `App-webs`, 30),

	NewRule("OpenSSH", "ssh", "OpenBSD", "OpenSSH").
		With(LocationBanner, `OpenSSH`, 50).
		With(LocationBanner, `OpenSSH_([\w.]+)`, 50),

	NewRule("Generic HTTP", "http", "unknown", "HTTP Server").
		With(LocationBanner, `HTTP/\d\.\d`, 30).
		With(LocationBanner, `Server:`, 20).
		With(LocationBody, `<html`, 40),

	NewRule("Generic RTSP", "rtsp", "unknown", "RTSP Server").
		With(LocationBanner, `RTSP/\d\.\d`, 50),

	NewRule("VNC", "vnc", "RealVNC", "VNC Server", "remote_desktop").
		With(LocationBanner, `^RFB \d{3}\.\d{3}`, 100),

	NewRule("FTP", "ftp", "unknown", "FTP Server", "file_transfer").
		With(LocationBanner, `^220.*FTP`, 80).
		With(LocationBanner, `vsftpd`, 90).
		With(LocationBanner, `ProFTPD`, 90),

	NewRule("Caddy", "http", "Caddy", "Caddy Web Server").
		With(Header("server"), `Caddy`, 100),

	NewRule("Dahua", "camera", "Dahua", "IP Camera", "iot", "surveillance").
		With(LocationBanner, `Dahua`, 60).
		With(Header("server"), `Dahua`, 60).
		With(LocationBody, `dahua`, 40),

	NewRule("Home Assistant", "iot", "Home Assistant", "Home Assistant", "smart_home").
		With(LocationBody, `Home Assistant`, 80).
		With(LocationTitle, `Home Assistant`, 80),
}
