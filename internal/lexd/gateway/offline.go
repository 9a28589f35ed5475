package gateway

import (
	"fmt"
	"html"
	"net/http"
	"strings"
)

const (
	offlineResourceMessage = "Offline - resource not available"
	offlineGenericMessage  = "Offline"
	offlineAPIMessage      = "Sin conexión. Los datos se sincronizarán cuando vuelvas a estar en línea."
)

const offlineLayout = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body{font-family:system-ui,sans-serif;background:#f8fafc;color:#0f172a;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
main{max-width:28rem;text-align:center;padding:2rem}
h1{font-size:1.5rem;margin-bottom:.5rem}
button{margin-top:1.5rem;padding:.6rem 1.4rem;border:0;border-radius:.4rem;background:#1e3a8a;color:#fff;font-size:1rem;cursor:pointer}
</style>
</head>
<body>
<main>
<h1>%s</h1>
<p>%s</p>
<button onclick="location.reload()">Reintentar</button>
</main>
</body>
</html>
`

func brand(appName string) string {
	switch strings.ToLower(appName) {
	case "", "lexdesk":
		return "LexDesk CRM"
	}
	return appName
}

func htmlPage(title, heading, message string) *StoredResponse {
	body := fmt.Sprintf(offlineLayout, html.EscapeString(title), html.EscapeString(heading), html.EscapeString(message))
	return &StoredResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(body),
	}
}

// offlineAppPage is the app shell shown for critical routes
func offlineAppPage(appName string) *StoredResponse {
	b := brand(appName)
	return htmlPage(b+" - Sin conexión", "Sin conexión",
		"No hay conexión a internet. Los cambios que realices se sincronizarán cuando vuelvas a estar en línea.")
}

// offlineRootPage is shown for the site root
func offlineRootPage(appName string) *StoredResponse {
	b := brand(appName)
	return htmlPage(b, b, "Estás sin conexión. Vuelve a intentarlo en unos momentos.")
}

func offlineHandlerPage(appName, path string) *StoredResponse {
	b := brand(appName)
	if strings.HasPrefix(path, pathUpload) {
		return htmlPage(b+" - Subida pendiente", "Sin conexión",
			"El archivo no se pudo subir. Inténtalo de nuevo cuando vuelvas a estar en línea.")
	}
	return htmlPage(b+" - Compartir", "Sin conexión",
		"El contenido compartido se procesará cuando vuelvas a estar en línea.")
}

func offlineJSON() *StoredResponse {
	body := fmt.Sprintf(`{"error":"offline","message":%q}`, offlineAPIMessage)
	return &StoredResponse{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(body),
	}
}

func offlineText(msg string) *StoredResponse {
	return &StoredResponse{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte(msg),
	}
}
