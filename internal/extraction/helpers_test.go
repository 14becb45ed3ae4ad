package extraction

const nfeICMSST = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc><NFe><infNFe>
<ide><natOp>Venda de mercadoria adquirida de terceiros</natOp></ide>
<det nItem="1"><prod><xProd>BISCOITO RECHEADO CHOCOLATE 140G</xProd></prod>
<imposto><ICMS><ICMS10><vBCST>120.00</vBCST><vICMSST>8.40</vICMSST></ICMS10></ICMS>
<PIS><PISAliq><vPIS>1.65</vPIS></PISAliq></PIS><COFINS><COFINSAliq><vCOFINS>7.60</vCOFINS></COFINSAliq></COFINS></imposto></det>
<det nItem="2"><prod><xProd>CAF&#201; TORRADO 500G</xProd></prod></det>
</infNFe></NFe></nfeProc>`

const nfeICMS = `<NFe><infNFe>
<det nItem="1"><prod><xProd>Notebook 15 polegadas</xProd></prod>
<imposto><ICMS><ICMS00><vICMS>180.00</vICMS></ICMS00></ICMS><IPI><IPITrib><vIPI>0.00</vIPI></IPITrib></IPI>
<PIS><PISAliq><vPIS>16.50</vPIS></PISAliq></PIS></imposto></det>
</infNFe></NFe>`

const nfeIPI = `<NFe><infNFe>
<det nItem="1"><prod><xProd>Furadeira de impacto</xProd></prod>
<imposto><ICMS><ICMS00><vICMS>36.00</vICMS></ICMS00></ICMS><IPI><IPITrib><vIPI>0,35</vIPI></IPITrib></IPI></imposto></det>
</infNFe></NFe>`

const nfeISS = `<NFe><infNFe>
<det nItem="1"><prod><xProd>Servico de manutencao</xProd></prod>
<imposto><ISSQN><vISSQN>25.00</vISSQN></ISSQN><PIS><PISOutr/></PIS></imposto></det>
</infNFe></NFe>`
